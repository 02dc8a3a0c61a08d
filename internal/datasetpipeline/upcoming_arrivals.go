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
	"time"

	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// UpcomingArrivalsPipeline groups missionaries whose arrival falls
// within (today, today+WindowDays] by date then district.
//
// Grounded on original_source's UpcomingArrivalPipeline (allow_empty,
// unique_fields on (district, arrival_date), invalid_missionaries_count).
type UpcomingArrivalsPipeline struct {
	Repo       Repository
	BranchID   int
	WindowDays int
	Now        func() time.Time // overridable for tests; defaults to time.Now
}

func (p *UpcomingArrivalsPipeline) DatasetID() string { return "upcoming_arrivals" }

func (p *UpcomingArrivalsPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *UpcomingArrivalsPipeline) Load(ctx context.Context) ([]models.MissionaryRecord, error) {
	return p.Repo.FetchActiveByBranch(ctx, p.BranchID)
}

func (p *UpcomingArrivalsPipeline) Validate(rows []models.MissionaryRecord) error {
	return nil // allow_empty: an empty upcoming-arrivals window is not an error
}

type arrivalGroup struct {
	date          string
	district      string
	rdistrict     string
	branchID      int
	count         int
	maxDeparture  string
	threeWeeksSum int
}

func (p *UpcomingArrivalsPipeline) Transform(rows []models.MissionaryRecord) (any, int, error) {
	today := truncateToDate(p.now())
	windowEnd := today.AddDate(0, 0, p.WindowDays)

	groups := map[[2]string]*arrivalGroup{}
	var keys [][2]string

	for _, r := range rows {
		arrival, ok := parseISODate(r.Arrival)
		if !ok {
			continue
		}
		if !arrival.After(today) || arrival.After(windowEnd) {
			continue
		}

		key := [2]string{r.Arrival, r.District}
		g, seen := groups[key]
		if !seen {
			g = &arrivalGroup{date: r.Arrival, district: r.District, rdistrict: r.DistrictID, branchID: r.BranchIDNum}
			groups[key] = g
			keys = append(keys, key)
		}
		g.count++
		if r.Departure > g.maxDeparture {
			g.maxDeparture = r.Departure
		}
		if r.ThreeWeeks {
			g.threeWeeksSum++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	arrivals := make([]models.UpcomingArrival, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		durationWeeks := 6
		if g.threeWeeksSum*2 > g.count {
			durationWeeks = 3
		}
		count := g.count
		if count < 0 || count > 200 {
			return nil, 0, &ValidationError{DatasetID: p.DatasetID(), Code: resultmodel.ErrInvalidMissionariesCount, Message: "missionaries_count out of range"}
		}
		arrivals = append(arrivals, models.UpcomingArrival{
			District:          g.district,
			RDistrict:         g.rdistrict,
			BranchID:          g.branchID,
			ArrivalDate:       g.date,
			DepartureDate:     g.maxDeparture,
			MissionariesCount: count,
			DurationWeeks:     durationWeeks,
		})
	}

	return arrivals, len(arrivals), nil
}

func parseISODate(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
