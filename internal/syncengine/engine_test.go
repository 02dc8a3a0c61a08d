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

package syncengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JPMarichal/ccmwf/internal/eventbus"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/objectstore"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// TestAcquireRejectsConcurrentSameGeneration exercises the in-process
// half of the concurrency guard without needing a live Postgres pool,
// since HasRunInProgress is only reached after the in-memory check
// passes.
func TestAcquireRejectsConcurrentSameGeneration(t *testing.T) {
	e := &Engine{inFlight: make(map[string]bool), bus: eventbus.New()}
	e.inFlight["20250703"] = true

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = nil // store is nil; acquire would panic past the in-memory guard, which is fine here
			}
		}()
		return e.acquire(context.Background(), "20250703")
	}()

	if err == nil || err.Error() != resultmodel.ErrSyncInProgress {
		t.Fatalf("expected %q, got %v", resultmodel.ErrSyncInProgress, err)
	}
}

func TestReleaseClearsInFlightFlag(t *testing.T) {
	e := &Engine{inFlight: make(map[string]bool), bus: eventbus.New()}
	e.inFlight["20250703"] = true
	e.release("20250703")
	if e.inFlight["20250703"] {
		t.Fatal("expected in-flight flag to be cleared")
	}
}

// fakeSyncStore is an in-memory Store used to drive the Engine's resume
// logic without a live Postgres pool. insertCalls counts every non-empty
// InsertBatch invocation across Run calls; failOnCall makes the call with
// that ordinal fail once, simulating a mid-file write failure.
type fakeSyncStore struct {
	state       models.SyncState
	hasState    bool
	committed   map[int]bool
	insertCalls int
	failOnCall  int
}

func (f *fakeSyncStore) LoadState(_ context.Context, generationDate string) (models.SyncState, error) {
	if !f.hasState {
		return models.SyncState{GenerationDate: generationDate}, nil
	}
	return f.state, nil
}

func (f *fakeSyncStore) SaveState(_ context.Context, state models.SyncState) error {
	f.state = state
	f.hasState = true
	return nil
}

func (f *fakeSyncStore) DeleteState(_ context.Context, _ string) error {
	f.state = models.SyncState{}
	f.hasState = false
	return nil
}

func (f *fakeSyncStore) StartRun(_ context.Context, _ models.SyncRun) error { return nil }

func (f *fakeSyncStore) FinishRun(_ context.Context, _, _ string, _, _ int) error { return nil }

func (f *fakeSyncStore) HasRunInProgress(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeSyncStore) ExistingIDs(_ context.Context, ids []int) (map[int]bool, error) {
	existing := make(map[int]bool, len(ids))
	for _, id := range ids {
		if f.committed[id] {
			existing[id] = true
		}
	}
	return existing, nil
}

func (f *fakeSyncStore) InsertBatch(_ context.Context, records []models.MissionaryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	f.insertCalls++
	if f.failOnCall != 0 && f.insertCalls == f.failOnCall {
		return 0, errors.New("simulated insert failure")
	}
	inserted := 0
	for _, r := range records {
		if f.committed[r.ID] {
			continue
		}
		f.committed[r.ID] = true
		inserted++
	}
	return inserted, nil
}

// buildRosterXLSX writes one roster row per id, with only the columns
// ReadRows/MapRow require to avoid a row_empty result (id and name).
func buildRosterXLSX(t *testing.T, ids []int) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, id := range ids {
		row := i + 2 // row 1 is the header, skipped by ReadRows
		idCell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, idCell, id); err != nil {
			t.Fatalf("set id cell: %v", err)
		}
		nameCell, _ := excelize.CoordinatesToCellName(10, row)
		if err := f.SetCellValue(sheet, nameCell, fmt.Sprintf("Missionary %d", id)); err != nil {
			t.Fatalf("set name cell: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write roster workbook: %v", err)
	}
	return buf.Bytes()
}

// TestRunResumesFailedFileWithoutDuplicatingInserts: a file whose second
// batch fails mid-sync must be re-processed on rerun, not skipped, and
// the already-committed first batch must not be inserted twice.
func TestRunResumesFailedFileWithoutDuplicatingInserts(t *testing.T) {
	ctx := context.Background()

	ids := make([]int, 100)
	for i := range ids {
		ids[i] = i + 1
	}
	roster := buildRosterXLSX(t, ids)

	files := objectstore.NewMemoryStore()
	folderID, err := files.EnsureFolder(ctx, "root", "20250703")
	if err != nil {
		t.Fatalf("ensure folder: %v", err)
	}
	const sheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if _, err := files.Upload(ctx, folderID, "roster.xlsx", roster, sheetContentType); err != nil {
		t.Fatalf("upload roster: %v", err)
	}

	store := &fakeSyncStore{committed: make(map[int]bool), failOnCall: 2}
	engine := NewEngine(store, files, eventbus.New())

	report, err := engine.Run(ctx, "20250703", folderID, false, 5)
	if err == nil {
		t.Fatal("expected the first run to fail on the second batch")
	}
	if report.Inserted != 50 {
		t.Fatalf("first run Inserted = %d, want 50 (only the first batch committed)", report.Inserted)
	}
	if !store.hasState || !store.state.ContinuationToken.Present() {
		t.Fatal("expected a continuation token to be persisted after the failed file")
	}
	if store.state.ContinuationToken.FileID == "" {
		t.Fatal("expected the continuation token to name the failed file")
	}
	if store.state.LastProcessedFileID != "" {
		t.Fatalf("LastProcessedFileID = %q, want empty: the failed file must not be skipped on rerun", store.state.LastProcessedFileID)
	}

	store.failOnCall = 0 // the rerun's remaining batch now succeeds
	report2, err := engine.Run(ctx, "20250703", folderID, false, 5)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report2.Inserted != 50 {
		t.Fatalf("second run Inserted = %d, want 50 (only the un-inserted half)", report2.Inserted)
	}
	if report2.Skipped != 50 {
		t.Fatalf("second run Skipped = %d, want 50 (the already-committed half, deduped)", report2.Skipped)
	}

	if len(store.committed) != len(ids) {
		t.Fatalf("committed %d distinct ids, want %d with no duplicates", len(store.committed), len(ids))
	}
	for _, id := range ids {
		if !store.committed[id] {
			t.Fatalf("id %d was never committed across the two runs", id)
		}
	}
	if store.hasState {
		t.Fatal("expected sync state to be cleared after a fully successful rerun")
	}
}
