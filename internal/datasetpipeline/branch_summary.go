// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datasetpipeline

import (
	"context"
	"sort"

	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// BranchSummaryPipeline aggregates the current generation's missionary
// counts by district for one or more allowed branches.
//
// Grounded on original_source's BranchSummaryPipeline (required_fields,
// unique_fields on (branch_id, district), the invalid_total_missionaries
// invariant).
type BranchSummaryPipeline struct {
	Repo            Repository
	BranchID        int
	AllowedBranches []int
	GenerationDate  string
}

func (p *BranchSummaryPipeline) DatasetID() string { return "branch_summary" }

func (p *BranchSummaryPipeline) Load(ctx context.Context) ([]models.MissionaryRecord, error) {
	branches := p.AllowedBranches
	if len(branches) == 0 {
		branches = []int{p.BranchID}
	}
	generation := p.GenerationDate
	if generation == "" {
		latest, err := p.Repo.LatestGenerationDate(ctx, branches)
		if err != nil {
			return nil, err
		}
		generation = latest
	}
	return p.Repo.FetchByGeneration(ctx, generation, branches)
}

func (p *BranchSummaryPipeline) Validate(rows []models.MissionaryRecord) error {
	if len(rows) == 0 {
		return &ValidationError{DatasetID: p.DatasetID(), Code: resultmodel.ErrDatasetMissingRows, Message: "no rows for requested generation and branches"}
	}
	for _, r := range rows {
		if r.District == "" {
			return &ValidationError{DatasetID: p.DatasetID(), Code: "missing_required_fields", Message: "row " + r.Name + " has no district"}
		}
	}
	return nil
}

// Transform groups rows by district, computing per-district totals and
// the branch-wide first-arrival/last-departure bounds, then validates
// that total_missionaries equals the sum of the district totals.
func (p *BranchSummaryPipeline) Transform(rows []models.MissionaryRecord) (any, int, error) {
	counts := map[string]int{}
	var districts []string
	var firstArrival, lastDeparture string

	for _, r := range rows {
		if _, seen := counts[r.District]; !seen {
			districts = append(districts, r.District)
		}
		counts[r.District]++

		if r.Arrival != "" && (firstArrival == "" || r.Arrival < firstArrival) {
			firstArrival = r.Arrival
		}
		if r.Departure != "" && r.Departure > lastDeparture {
			lastDeparture = r.Departure
		}
	}
	sort.Strings(districts)

	totals := make([]models.DistrictTotal, 0, len(districts))
	sum := 0
	for _, d := range districts {
		totals = append(totals, models.DistrictTotal{District: d, Count: counts[d]})
		sum += counts[d]
	}

	if sum != len(rows) {
		return nil, 0, &ValidationError{
			DatasetID: p.DatasetID(),
			Code:      resultmodel.ErrInvalidTotalMissionaries,
			Message:   "district totals do not add up to the branch total",
		}
	}

	summary, err := models.NewBranchSummary(p.BranchID, p.GenerationDate, totals)
	if err != nil {
		return nil, 0, &ValidationError{DatasetID: p.DatasetID(), Code: resultmodel.ErrInvalidTotalMissionaries, Message: err.Error()}
	}
	summary.FirstCCMArrival = firstArrival
	summary.LastCCMDeparture = lastDeparture

	return summary, len(rows), nil
}
