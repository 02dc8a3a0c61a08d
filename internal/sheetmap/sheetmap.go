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

// Package sheetmap maps the positional cells of a generation spreadsheet
// to a MissionaryRecord by column index, per SPEC_FULL.md §6.
//
// Grounded on original_source's database_sync_service.py
// (_parse_excel_rows / MissionaryRecord.from_row).
package sheetmap

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/normalize"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// Column indices, per SPEC_FULL.md §6. Index 8 is unused.
const (
	colID                  = 0
	colDistrictID          = 1
	colType                = 2
	colBranch              = 3
	colDistrict            = 4
	colCountry             = 5
	colListNumber          = 6
	colCompanionshipNumber = 7
	colName                = 9
	colCompanion           = 10
	colAssignedMission     = 11
	colStake               = 12
	colLodging             = 13
	colPhoto               = 14
	colArrival             = 15
	colDeparture           = 16
	colGeneration          = 17
	colComments            = 18
	colEndowed             = 19
	colBirthDate           = 20
	colPhotoTaken          = 21
	colPassport            = 22
	colPassportFolio       = 23
	colFM                  = 24
	colIPad                = 25
	colCloset              = 26
	colSecondaryArrival    = 27
	colPDay                = 28
	colHost                = 29
	colThreeWeeks          = 30
	colDevice              = 31
	colMissionEmail        = 32
	colPersonalEmail       = 33
	colInPersonDate        = 34

	columnCount = 35
)

// ReadRows opens an xlsx workbook and returns the data rows of its first
// worksheet, excluding the header row.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrExcelReadFailed, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrExcelReadFailed, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// MapRows maps every data row to a MissionaryRecord, collecting per-row
// validation errors keyed by row index. A row that fails to yield a
// usable record — empty (row_empty) or lacking a valid positive id
// (id_missing) — is skipped from the returned slice but still reported,
// since a zero id would otherwise be persisted as a real row.
func MapRows(rows [][]string) ([]models.MissionaryRecord, map[int][]string) {
	now := time.Now().UTC()
	records := make([]models.MissionaryRecord, 0, len(rows))
	errs := make(map[int][]string)

	for idx, row := range rows {
		record, rowErrs := MapRow(row, now)
		if len(rowErrs) > 0 {
			errs[idx] = rowErrs
		}
		if isRowEmpty(row) || record.ID <= 0 {
			continue
		}
		records = append(records, record)
	}
	return records, errs
}

// MapRow maps a single positional row to a MissionaryRecord, applying C1
// normalization to date and boolean cells. now is the mapper's invocation
// instant, stamped onto CreatedAt/UpdatedAt.
func MapRow(row []string, now time.Time) (models.MissionaryRecord, []string) {
	if isRowEmpty(row) {
		return models.MissionaryRecord{}, []string{resultmodel.ErrRowEmpty}
	}

	var errs []string

	record := models.MissionaryRecord{
		DistrictID:          cell(row, colDistrictID),
		Type:                cell(row, colType),
		Branch:              cell(row, colBranch),
		District:            cell(row, colDistrict),
		Country:             cell(row, colCountry),
		ListNumber:          cell(row, colListNumber),
		CompanionshipNumber: cell(row, colCompanionshipNumber),
		Name:                cell(row, colName),
		Companion:           cell(row, colCompanion),
		AssignedMission:     cell(row, colAssignedMission),
		Stake:               cell(row, colStake),
		Lodging:             cell(row, colLodging),
		Photo:               cell(row, colPhoto),
		Generation:          cell(row, colGeneration),
		Comments:            cell(row, colComments),
		Endowed:             normalize.CoerceBool(cell(row, colEndowed)),
		PhotoTaken:          normalize.CoerceBool(cell(row, colPhotoTaken)),
		Passport:            normalize.CoerceBool(cell(row, colPassport)),
		PassportFolio:       cell(row, colPassportFolio),
		FM:                  cell(row, colFM),
		IPad:                normalize.CoerceBool(cell(row, colIPad)),
		Closet:              cell(row, colCloset),
		PDay:                cell(row, colPDay),
		Host:                normalize.CoerceBool(cell(row, colHost)),
		ThreeWeeks:          normalize.CoerceBool(cell(row, colThreeWeeks)),
		Device:              normalize.CoerceBool(cell(row, colDevice)),
		MissionEmail:        cell(row, colMissionEmail),
		PersonalEmail:       cell(row, colPersonalEmail),
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if id, ok := parseID(cell(row, colID)); ok {
		record.ID = id
	} else {
		errs = append(errs, resultmodel.ErrIDMissing)
	}

	if record.Name == "" {
		errs = append(errs, resultmodel.ErrNameMissing)
	}

	record.Arrival, errs = coerceDateField(cell(row, colArrival), "arrival", errs)
	record.Departure, errs = coerceDateField(cell(row, colDeparture), "departure", errs)
	record.BirthDate, errs = coerceDateField(cell(row, colBirthDate), "birth_date", errs)
	record.SecondaryArrival, errs = coerceDateField(cell(row, colSecondaryArrival), "secondary_arrival", errs)
	record.InPersonDate, errs = coerceDateField(cell(row, colInPersonDate), "in_person_date", errs)

	record.BranchIDNum = parseBranchID(record.Branch, record.DistrictID)

	return record, errs
}

func coerceDateField(raw, field string, errs []string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return "", errs
	}
	date, ok := normalize.CoerceDate(raw)
	if !ok {
		return "", append(errs, resultmodel.DateInvalid(field))
	}
	return date, errs
}

func parseID(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseBranchID(branch, districtID string) int {
	for _, candidate := range []string{branch, districtID} {
		if id, err := strconv.Atoi(strings.TrimSpace(candidate)); err == nil {
			return id
		}
	}
	return 0
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
