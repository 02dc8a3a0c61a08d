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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JPMarichal/ccmwf/internal/eventbus"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/objectstore"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
	"github.com/JPMarichal/ccmwf/internal/sheetmap"
)

const batchSize = 50

// Engine runs the resumable spreadsheet-to-store sync algorithm.
type Engine struct {
	store Store
	files objectstore.Store
	bus   *eventbus.Bus

	mu       sync.Mutex
	inFlight map[string]bool // in-process half of the concurrency guard
}

// NewEngine builds a sync Engine.
func NewEngine(store Store, files objectstore.Store, bus *eventbus.Bus) *Engine {
	return &Engine{store: store, files: files, bus: bus, inFlight: make(map[string]bool)}
}

// Run executes one sync_generation invocation for generationDate against
// folderID. If force is true, any prior SyncState is discarded before
// starting.
func (e *Engine) Run(ctx context.Context, generationDate, folderID string, force bool, branchID int) (models.SyncReport, error) {
	if err := e.acquire(ctx, generationDate); err != nil {
		return models.SyncReport{}, err
	}
	defer e.release(generationDate)

	start := time.Now()
	runID := uuid.NewString()
	if err := e.store.StartRun(ctx, models.SyncRun{
		RunID: runID, GenerationDate: generationDate, FolderID: folderID, StartedAt: start,
	}); err != nil {
		return models.SyncReport{}, fmt.Errorf("%s: %w", resultmodel.ErrDBInsertFailed, err)
	}

	report, err := e.runLocked(ctx, generationDate, folderID, force)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	_ = e.store.FinishRun(ctx, runID, outcome, report.Inserted, report.Skipped)

	if err != nil {
		return report, err
	}

	e.bus.Publish(ctx, eventbus.EventDatasetInvalidated, eventbus.DatasetInvalidated{
		GenerationDate: generationDate, BranchID: branchID,
	})
	return report, nil
}

func (e *Engine) acquire(ctx context.Context, generationDate string) error {
	e.mu.Lock()
	if e.inFlight[generationDate] {
		e.mu.Unlock()
		return errors.New(resultmodel.ErrSyncInProgress)
	}
	e.inFlight[generationDate] = true
	e.mu.Unlock()

	inProgress, err := e.store.HasRunInProgress(ctx, generationDate)
	if err != nil {
		e.release(generationDate)
		return err
	}
	if inProgress {
		e.release(generationDate)
		return errors.New(resultmodel.ErrSyncInProgress)
	}
	return nil
}

func (e *Engine) release(generationDate string) {
	e.mu.Lock()
	delete(e.inFlight, generationDate)
	e.mu.Unlock()
}

func (e *Engine) runLocked(ctx context.Context, generationDate, folderID string, force bool) (models.SyncReport, error) {
	start := time.Now()

	state, err := e.store.LoadState(ctx, generationDate)
	if err != nil {
		return models.SyncReport{}, err
	}
	if force {
		state = models.SyncState{GenerationDate: generationDate}
	}

	files, err := e.files.ListFolderFiles(ctx, folderID)
	if err != nil {
		return models.SyncReport{}, fmt.Errorf("%s: %w", resultmodel.ErrDriveListingFailed, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	// startIdx resumes AT the continuation-token file, if one was left by
	// a prior failed run, so that file is re-processed rather than
	// skipped; its already-committed batches dedup via ExistingIDs.
	// Otherwise it resumes after the last fully-completed file.
	startIdx := 0
	if state.ContinuationToken.Present() {
		for i, f := range files {
			if f.ID == state.ContinuationToken.FileID {
				startIdx = i
				break
			}
		}
	} else if state.LastProcessedFileID != "" {
		for i, f := range files {
			if f.ID == state.LastProcessedFileID {
				startIdx = i + 1
				break
			}
		}
	}

	report := models.SyncReport{}
	for _, f := range files[startIdx:] {
		result, err := e.syncFile(ctx, generationDate, f)
		report.Files = append(report.Files, result)
		report.Inserted += result.Inserted
		report.Skipped += result.Skipped

		if err != nil {
			state.ContinuationToken = models.ContinuationToken{FileID: f.ID}
			_ = e.store.SaveState(ctx, state)
			report.ContinuationToken = state.ContinuationToken
			report.DurationSeconds = time.Since(start).Seconds()
			return report, fmt.Errorf("%s: %w", resultmodel.ErrDBInsertFailed, err)
		}

		state.LastProcessedFileID = f.ID
		state.ContinuationToken = models.ContinuationToken{}
		if err := e.store.SaveState(ctx, state); err != nil {
			return report, err
		}
	}

	if err := e.store.DeleteState(ctx, generationDate); err != nil {
		return report, err
	}
	report.DurationSeconds = time.Since(start).Seconds()
	return report, nil
}

func (e *Engine) syncFile(ctx context.Context, generationDate string, f objectstore.File) (models.FileSyncResult, error) {
	result := models.FileSyncResult{FileID: f.ID, FileName: f.Name}

	data, err := e.files.DownloadFile(ctx, f.ID)
	if err != nil {
		result.Error = resultmodel.ErrDriveDownloadFailed
		return result, fmt.Errorf("%s: %w", resultmodel.ErrDriveDownloadFailed, err)
	}

	rows, err := sheetmap.ReadRows(bytes.NewReader(data))
	if err != nil {
		result.Error = resultmodel.ErrExcelReadFailed
		return result, fmt.Errorf("%s: %w", resultmodel.ErrExcelReadFailed, err)
	}

	records, _ := sheetmap.MapRows(rows)
	result.RowsInvalid = len(rows) - len(records)
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		ids := make([]int, len(batch))
		for j, r := range batch {
			ids[j] = r.ID
		}
		existing, err := e.store.ExistingIDs(ctx, ids)
		if err != nil {
			return result, err
		}

		var fresh []models.MissionaryRecord
		for _, r := range batch {
			if existing[r.ID] {
				result.Skipped++
				continue
			}
			fresh = append(fresh, r)
		}

		inserted, err := e.store.InsertBatch(ctx, fresh)
		if err != nil {
			return result, err
		}
		result.Inserted += inserted
		result.Skipped += len(fresh) - inserted
	}

	return result, nil
}
