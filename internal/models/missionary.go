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

// MissionaryRecord is a single row from a generation spreadsheet, mapped
// and normalized by the Spreadsheet Row Mapper.
//
// Grounded on original_source's database_sync_service.py MissionaryRecord
// (from_row/to_database_payload), generalized to the column mapping in
// SPEC_FULL.md §6.
type MissionaryRecord struct {
	ID                 int    `json:"id"`
	DistrictID         string `json:"district_id"`
	Type               string `json:"type"`
	Branch             string `json:"branch"`
	District           string `json:"district"`
	Country            string `json:"country"`
	ListNumber         string `json:"list_number"`
	CompanionshipNumber string `json:"companionship_number"`
	Treatment          string `json:"treatment"`
	Name               string `json:"name"`
	Companion          string `json:"companion"`
	AssignedMission    string `json:"assigned_mission"`
	Stake              string `json:"stake"`
	Lodging            string `json:"lodging"`
	Photo              string `json:"photo"`
	Arrival            string `json:"arrival,omitempty"`
	Departure          string `json:"departure,omitempty"`
	Generation         string `json:"generation"`
	Comments           string `json:"comments"`
	Endowed            bool   `json:"endowed"`
	BirthDate          string `json:"birth_date,omitempty"`
	PhotoTaken         bool   `json:"photo_taken"`
	Passport           bool   `json:"passport"`
	PassportFolio      string `json:"passport_folio"`
	FM                 string `json:"fm"`
	IPad               bool   `json:"ipad"`
	Closet             string `json:"closet"`
	SecondaryArrival   string `json:"secondary_arrival,omitempty"`
	PDay               string `json:"p_day"`
	Host               bool   `json:"host"`
	ThreeWeeks         bool   `json:"three_weeks"`
	Device             bool   `json:"device"`
	MissionEmail       string `json:"mission_email"`
	PersonalEmail      string `json:"personal_email"`
	InPersonDate       string `json:"in_person_date,omitempty"`

	// Service-filled fields (indices 35-37, and the unused index 8).
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// BranchIDNum is the integer branch identifier used for C7 filtering.
	// Parsed from Branch/DistrictID when numeric; zero when absent.
	BranchIDNum int `json:"branch_id,omitempty"`
}
