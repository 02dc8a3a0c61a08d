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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// Repository supplies the raw missionary_records rows each pipeline
// groups and aggregates. One implementation, Postgres-backed; a fake
// implementation in tests supplies in-memory rows.
//
// Grounded on original_source's ReportDataRepository, generalized from
// its four purpose-built queries to two general row fetches since
// SPEC_FULL.md's pipelines do their own grouping/aggregation in the
// transform step rather than in SQL.
type Repository interface {
	// LatestGenerationDate returns the most recent generation value
	// present for any of branchIDs, or "" if none exists.
	LatestGenerationDate(ctx context.Context, branchIDs []int) (string, error)
	// FetchByGeneration returns every active row for generationDate
	// whose branch_id_num is in branchIDs.
	FetchByGeneration(ctx context.Context, generationDate string, branchIDs []int) ([]models.MissionaryRecord, error)
	// FetchActiveByBranch returns every active row for branchID,
	// regardless of generation.
	FetchActiveByBranch(ctx context.Context, branchID int) ([]models.MissionaryRecord, error)
}

// PostgresRepository reads missionary_records directly, the same table
// the Sync Engine (C6) populates.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a Repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) LatestGenerationDate(ctx context.Context, branchIDs []int) (string, error) {
	if len(branchIDs) == 0 {
		return "", nil
	}
	var generation string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(generation), '') FROM missionary_records
		WHERE branch_id_num = ANY($1) AND active
	`, branchIDs).Scan(&generation)
	if err != nil {
		return "", fmt.Errorf("%s: %w", resultmodel.ErrDatasetQueryFailed, err)
	}
	return generation, nil
}

func (r *PostgresRepository) FetchByGeneration(ctx context.Context, generationDate string, branchIDs []int) ([]models.MissionaryRecord, error) {
	rows, err := r.pool.Query(ctx, recordColumns(`
		FROM missionary_records
		WHERE generation = $1 AND branch_id_num = ANY($2) AND active
	`), generationDate, branchIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrDatasetQueryFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *PostgresRepository) FetchActiveByBranch(ctx context.Context, branchID int) ([]models.MissionaryRecord, error) {
	rows, err := r.pool.Query(ctx, recordColumns(`
		FROM missionary_records
		WHERE branch_id_num = $1 AND active
	`), branchID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrDatasetQueryFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func recordColumns(whereClause string) string {
	return `
		SELECT id, district_id, type, branch, district, country, list_number,
			companionship_number, treatment, name, companion, assigned_mission,
			stake, lodging, photo, arrival, departure, generation, comments,
			endowed, birth_date, photo_taken, passport, passport_folio, fm,
			ipad, closet, secondary_arrival, p_day, host, three_weeks, device,
			mission_email, personal_email, in_person_date, branch_id_num,
			active, created_at, updated_at
	` + whereClause
}

func scanRecords(rows pgx.Rows) ([]models.MissionaryRecord, error) {
	var out []models.MissionaryRecord
	for rows.Next() {
		var r models.MissionaryRecord
		err := rows.Scan(
			&r.ID, &r.DistrictID, &r.Type, &r.Branch, &r.District, &r.Country, &r.ListNumber,
			&r.CompanionshipNumber, &r.Treatment, &r.Name, &r.Companion, &r.AssignedMission,
			&r.Stake, &r.Lodging, &r.Photo, &r.Arrival, &r.Departure, &r.Generation, &r.Comments,
			&r.Endowed, &r.BirthDate, &r.PhotoTaken, &r.Passport, &r.PassportFolio, &r.FM,
			&r.IPad, &r.Closet, &r.SecondaryArrival, &r.PDay, &r.Host, &r.ThreeWeeks, &r.Device,
			&r.MissionEmail, &r.PersonalEmail, &r.InPersonDate, &r.BranchIDNum,
			&r.Active, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", resultmodel.ErrDatasetScanFailed, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
