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

package sheetmap

import (
	"testing"
	"time"

	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

func fullRow() []string {
	row := make([]string, columnCount)
	row[colID] = "42"
	row[colDistrictID] = "10"
	row[colType] = "Elder"
	row[colBranch] = "5"
	row[colDistrict] = "F District 10C"
	row[colCountry] = "Mexico"
	row[colName] = "Elder Smith"
	row[colArrival] = "3/7/2025"
	row[colEndowed] = "si"
	row[colBirthDate] = "18/3/2000"
	row[colThreeWeeks] = "x"
	row[colInPersonDate] = "10/1/2025"
	return row
}

func TestMapRowHappyPath(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	record, errs := MapRow(fullRow(), now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record.ID != 42 {
		t.Fatalf("ID = %d, want 42", record.ID)
	}
	if record.Arrival != "2025-07-03" {
		t.Fatalf("Arrival = %q, want 2025-07-03", record.Arrival)
	}
	if !record.Endowed || !record.ThreeWeeks {
		t.Fatalf("expected Endowed and ThreeWeeks true, got %+v", record)
	}
	if !record.Active {
		t.Fatal("expected Active to default true")
	}
	if record.BranchIDNum != 5 {
		t.Fatalf("BranchIDNum = %d, want 5", record.BranchIDNum)
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps stamped with now, got %+v", record)
	}
}

func TestMapRowMissingIDAndName(t *testing.T) {
	row := fullRow()
	row[colID] = ""
	row[colName] = ""
	_, errs := MapRow(row, time.Now().UTC())
	wantCodes := map[string]bool{resultmodel.ErrIDMissing: true, resultmodel.ErrNameMissing: true}
	for _, e := range errs {
		delete(wantCodes, e)
	}
	if len(wantCodes) != 0 {
		t.Fatalf("missing expected error codes: %v; got %v", wantCodes, errs)
	}
}

func TestMapRowInvalidDate(t *testing.T) {
	row := fullRow()
	row[colBirthDate] = "not-a-date"
	_, errs := MapRow(row, time.Now().UTC())
	want := resultmodel.DateInvalid("birth_date")
	found := false
	for _, e := range errs {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among errs, got %v", want, errs)
	}
}

func TestMapRowEmpty(t *testing.T) {
	row := make([]string, columnCount)
	_, errs := MapRow(row, time.Now().UTC())
	if len(errs) != 1 || errs[0] != resultmodel.ErrRowEmpty {
		t.Fatalf("expected [row_empty], got %v", errs)
	}
}

func TestMapRowsSkipsEmptyRowsFromOutput(t *testing.T) {
	rows := [][]string{fullRow(), make([]string, columnCount)}
	records, errs := MapRows(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 mapped record, got %d", len(records))
	}
	if len(errs[1]) != 1 || errs[1][0] != resultmodel.ErrRowEmpty {
		t.Fatalf("expected row 1 to report row_empty, got %v", errs[1])
	}
}
