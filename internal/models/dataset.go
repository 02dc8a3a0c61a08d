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

package models

import "time"

// BranchSummary aggregates missionary counts by district for one
// generation. Immutable once built; construct via NewBranchSummary, which
// derives the total from the district counts.
//
// Grounded on original_source's models.py BranchSummary.
type BranchSummary struct {
	BranchID            int              `json:"branch_id"`
	GenerationDate       string           `json:"generation_date"`
	Districts            []DistrictTotal `json:"districts"`
	TotalMissionaries    int              `json:"total_missionaries"`
	TotalCompanionships  int              `json:"total_companionships"`
	EldersCount          int              `json:"elders_count"`
	SistersCount         int              `json:"sisters_count"`
	FirstGenerationDate  string           `json:"first_generation_date,omitempty"`
	FirstCCMArrival      string           `json:"first_ccm_arrival,omitempty"`
	LastCCMDeparture     string           `json:"last_ccm_departure,omitempty"`
}

// DistrictTotal is one district's contribution to a BranchSummary.
type DistrictTotal struct {
	District string `json:"district"`
	Count    int    `json:"count"`
}

// NewBranchSummary sets total_missionaries to sum(district counts), so the
// aggregate invariant of SPEC_FULL.md §4.7 holds by construction; the
// returned error is always nil.
func NewBranchSummary(branchID int, generationDate string, districts []DistrictTotal) (BranchSummary, error) {
	sum := 0
	for _, d := range districts {
		sum += d.Count
	}
	bs := BranchSummary{
		BranchID:          branchID,
		GenerationDate:    generationDate,
		Districts:         districts,
		TotalMissionaries: sum,
	}
	return bs, nil
}

// DistrictKPI is a single labeled metric for a district.
type DistrictKPI struct {
	BranchID         int       `json:"branch_id"`
	District         string    `json:"district"`
	Metric           string    `json:"metric"`
	Value            float64   `json:"value"`
	Unit             string    `json:"unit,omitempty"`
	GeneratedForWeek string    `json:"generated_for_week,omitempty"`
}

// UpcomingArrival describes a consolidated future-arrival cohort.
type UpcomingArrival struct {
	District             string `json:"district"`
	RDistrict            string `json:"rdistrict,omitempty"`
	BranchID             int    `json:"branch_id,omitempty"`
	ArrivalDate          string `json:"arrival_date"`
	DepartureDate        string `json:"departure_date,omitempty"`
	MissionariesCount    int    `json:"missionaries_count"`
	DurationWeeks        int    `json:"duration_weeks,omitempty"`
	Status               string `json:"status,omitempty"`
}

// UpcomingBirthday describes a single missionary's upcoming birthday.
type UpcomingBirthday struct {
	MissionaryID        int    `json:"missionary_id,omitempty"`
	BranchID            int    `json:"branch_id,omitempty"`
	District            string `json:"district,omitempty"`
	Treatment           string `json:"treatment,omitempty"`
	MissionaryName      string `json:"missionary_name"`
	Birthday            string `json:"birthday"`
	AgeTurning          int    `json:"age_turning,omitempty"`
	Status              string `json:"status,omitempty"`
	EmailMissionary     string `json:"email_missionary,omitempty"`
	EmailPersonal       string `json:"email_personal,omitempty"`
	ThreeWeeksProgram   bool   `json:"three_weeks_program,omitempty"`
}

// DatasetMetadata accompanies every dataset produced by a pipeline.
type DatasetMetadata struct {
	DatasetID      string    `json:"dataset_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	GenerationDate string    `json:"generation_date"`
	RowCount       int       `json:"row_count"`
	CacheKey       string    `json:"cache_key"`
	BranchID       int       `json:"branch_id,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
}
