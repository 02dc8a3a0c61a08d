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

// Package syncengine implements the resumable spreadsheet-to-store sync
// algorithm (C6): enumerate spreadsheet files in a folder, stream rows
// through the spreadsheet mapper in batches, and persist progress so a
// failed sync resumes at the file it left off at.
//
// Grounded on the teacher's internal/subscription/store.go
// (ensureSchema, upsert-on-conflict, typed row scanning) and
// original_source's database_sync_service.py (batch insert, continuation
// tracking).
package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JPMarichal/ccmwf/internal/models"
)

// Store persists SyncState, SyncRun audit records, and MissionaryRecord
// rows. One implementation, Postgres-backed; a fake implementation in
// tests drives the Engine's resume logic without a live database.
type Store interface {
	LoadState(ctx context.Context, generationDate string) (models.SyncState, error)
	SaveState(ctx context.Context, state models.SyncState) error
	DeleteState(ctx context.Context, generationDate string) error
	StartRun(ctx context.Context, run models.SyncRun) error
	FinishRun(ctx context.Context, runID, outcome string, inserted, skipped int) error
	HasRunInProgress(ctx context.Context, generationDate string) (bool, error)
	ExistingIDs(ctx context.Context, ids []int) (map[int]bool, error)
	InsertBatch(ctx context.Context, records []models.MissionaryRecord) (int, error)
}

// PostgresStore is the Store implementation backed by Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore builds a PostgresStore backed by pool, ensuring its schema
// exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure syncengine schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_states (
			generation_date        TEXT PRIMARY KEY,
			last_processed_file_id TEXT DEFAULT '',
			continuation_token     TEXT DEFAULT '',
			updated_at             TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sync_runs (
			run_id          TEXT PRIMARY KEY,
			generation_date TEXT NOT NULL,
			folder_id       TEXT NOT NULL,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ,
			inserted        INTEGER DEFAULT 0,
			skipped         INTEGER DEFAULT 0,
			outcome         TEXT DEFAULT 'in_progress'
		);
		CREATE INDEX IF NOT EXISTS idx_sync_runs_generation ON sync_runs(generation_date);

		CREATE TABLE IF NOT EXISTS missionary_records (
			id                   INTEGER PRIMARY KEY,
			district_id          TEXT DEFAULT '',
			type                 TEXT DEFAULT '',
			branch               TEXT DEFAULT '',
			district             TEXT DEFAULT '',
			country              TEXT DEFAULT '',
			list_number          TEXT DEFAULT '',
			companionship_number TEXT DEFAULT '',
			treatment            TEXT DEFAULT '',
			name                 TEXT NOT NULL,
			companion            TEXT DEFAULT '',
			assigned_mission     TEXT DEFAULT '',
			stake                TEXT DEFAULT '',
			lodging              TEXT DEFAULT '',
			photo                TEXT DEFAULT '',
			arrival              TEXT DEFAULT '',
			departure            TEXT DEFAULT '',
			generation           TEXT DEFAULT '',
			comments             TEXT DEFAULT '',
			endowed              BOOLEAN DEFAULT FALSE,
			birth_date           TEXT DEFAULT '',
			photo_taken          BOOLEAN DEFAULT FALSE,
			passport             BOOLEAN DEFAULT FALSE,
			passport_folio       TEXT DEFAULT '',
			fm                   TEXT DEFAULT '',
			ipad                 BOOLEAN DEFAULT FALSE,
			closet               TEXT DEFAULT '',
			secondary_arrival    TEXT DEFAULT '',
			p_day                TEXT DEFAULT '',
			host                 BOOLEAN DEFAULT FALSE,
			three_weeks          BOOLEAN DEFAULT FALSE,
			device               BOOLEAN DEFAULT FALSE,
			mission_email        TEXT DEFAULT '',
			personal_email       TEXT DEFAULT '',
			in_person_date       TEXT DEFAULT '',
			branch_id_num        INTEGER DEFAULT 0,
			active               BOOLEAN DEFAULT TRUE,
			created_at           TIMESTAMPTZ DEFAULT NOW(),
			updated_at           TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_missionary_branch ON missionary_records(branch_id_num);
		CREATE INDEX IF NOT EXISTS idx_missionary_generation ON missionary_records(generation);
	`)
	return err
}

// LoadState returns the persisted SyncState for generationDate, or the
// zero value if none exists.
func (s *PostgresStore) LoadState(ctx context.Context, generationDate string) (models.SyncState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT generation_date, last_processed_file_id, continuation_token, updated_at
		FROM sync_states WHERE generation_date = $1
	`, generationDate)

	var state models.SyncState
	var token string
	err := row.Scan(&state.GenerationDate, &state.LastProcessedFileID, &token, &state.UpdatedAt)
	if err == pgx.ErrNoRows {
		return models.SyncState{GenerationDate: generationDate}, nil
	}
	if err != nil {
		return models.SyncState{}, err
	}
	state.ContinuationToken = models.ContinuationToken{FileID: token}
	return state, nil
}

// SaveState upserts SyncState with an atomic replace of the single row.
func (s *PostgresStore) SaveState(ctx context.Context, state models.SyncState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_states (generation_date, last_processed_file_id, continuation_token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (generation_date) DO UPDATE SET
			last_processed_file_id = EXCLUDED.last_processed_file_id,
			continuation_token     = EXCLUDED.continuation_token,
			updated_at             = NOW()
	`, state.GenerationDate, state.LastProcessedFileID, state.ContinuationToken.FileID)
	return err
}

// DeleteState removes SyncState on successful completion.
func (s *PostgresStore) DeleteState(ctx context.Context, generationDate string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_states WHERE generation_date = $1`, generationDate)
	return err
}

// StartRun inserts an in-progress SyncRun audit record.
func (s *PostgresStore) StartRun(ctx context.Context, run models.SyncRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (run_id, generation_date, folder_id, started_at, outcome)
		VALUES ($1, $2, $3, $4, 'in_progress')
	`, run.RunID, run.GenerationDate, run.FolderID, run.StartedAt)
	return err
}

// FinishRun marks a SyncRun with its terminal outcome and totals.
func (s *PostgresStore) FinishRun(ctx context.Context, runID, outcome string, inserted, skipped int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET finished_at = $1, outcome = $2, inserted = $3, skipped = $4
		WHERE run_id = $5
	`, time.Now().UTC(), outcome, inserted, skipped, runID)
	return err
}

// HasRunInProgress reports whether an unfinished SyncRun exists for
// generationDate, the durable half of the concurrency guard.
func (s *PostgresStore) HasRunInProgress(ctx context.Context, generationDate string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sync_runs WHERE generation_date = $1 AND outcome = 'in_progress'
	`, generationDate).Scan(&count)
	return count > 0, err
}

// ExistingIDs returns the subset of ids already present in
// missionary_records, used to filter duplicates before a batch insert.
func (s *PostgresStore) ExistingIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	if len(ids) == 0 {
		return map[int]bool{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM missionary_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[int]bool, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// InsertBatch inserts records in a single transaction, skipping any id
// already present. Returns the count actually inserted.
func (s *PostgresStore) InsertBatch(ctx context.Context, records []models.MissionaryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, r := range records {
		tag, err := tx.Exec(ctx, `
			INSERT INTO missionary_records (
				id, district_id, type, branch, district, country, list_number,
				companionship_number, treatment, name, companion, assigned_mission,
				stake, lodging, photo, arrival, departure, generation, comments,
				endowed, birth_date, photo_taken, passport, passport_folio, fm,
				ipad, closet, secondary_arrival, p_day, host, three_weeks, device,
				mission_email, personal_email, in_person_date, branch_id_num,
				active, created_at, updated_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
				$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38
			)
			ON CONFLICT (id) DO NOTHING
		`,
			r.ID, r.DistrictID, r.Type, r.Branch, r.District, r.Country, r.ListNumber,
			r.CompanionshipNumber, r.Treatment, r.Name, r.Companion, r.AssignedMission,
			r.Stake, r.Lodging, r.Photo, r.Arrival, r.Departure, r.Generation, r.Comments,
			r.Endowed, r.BirthDate, r.PhotoTaken, r.Passport, r.PassportFolio, r.FM,
			r.IPad, r.Closet, r.SecondaryArrival, r.PDay, r.Host, r.ThreeWeeks, r.Device,
			r.MissionEmail, r.PersonalEmail, r.InPersonDate, r.BranchIDNum,
			r.Active, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("db_insert_failed: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("db_insert_failed: %w", err)
	}
	return inserted, nil
}
