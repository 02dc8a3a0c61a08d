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

// ContinuationToken is a tagged variant: either absent, or a file to
// resume at. Modeled explicitly per SPEC_FULL.md §9 ("model it as a
// tagged variant {None, File(id)} to make exhaustiveness explicit").
type ContinuationToken struct {
	FileID string `json:"file_id,omitempty"`
}

// Present reports whether the token names a file to resume at.
func (c ContinuationToken) Present() bool { return c.FileID != "" }

// SyncState is C6's exclusively-owned resume state for one generation.
// Persisted with atomic replace semantics; deleted on successful
// completion.
//
// Grounded on the teacher's subscription.Store Record (typed row,
// upsert-on-conflict) and original_source's DatabaseSyncState.
type SyncState struct {
	GenerationDate     string            `json:"generation_date"`
	LastProcessedFileID string           `json:"last_processed_file_id"`
	ContinuationToken  ContinuationToken `json:"continuation_token"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// SyncRun is a supplemental audit record of one sync_generation
// invocation (SPEC_FULL.md §3 supplemental entity). It answers "is a
// sync already running for this generation" durably, complementing the
// in-memory lock in syncengine.Engine.
type SyncRun struct {
	RunID          string    `json:"run_id"`
	GenerationDate string    `json:"generation_date"`
	FolderID       string    `json:"folder_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	Inserted       int       `json:"inserted"`
	Skipped        int       `json:"skipped"`
	Outcome        string    `json:"outcome"` // "in_progress", "completed", "failed"
}

// SyncReport is the per-call output of sync_generation.
type SyncReport struct {
	Inserted          int               `json:"inserted"`
	Skipped           int               `json:"skipped"`
	DurationSeconds   float64           `json:"duration_seconds"`
	ContinuationToken ContinuationToken `json:"continuation_token"`
	Files             []FileSyncResult  `json:"files"`
}

// FileSyncResult is the per-file breakdown within a SyncReport.
type FileSyncResult struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	Inserted    int    `json:"inserted"`
	Skipped     int    `json:"skipped"`
	RowsInvalid int    `json:"rows_invalid"`
	Error       string `json:"error,omitempty"`
}
