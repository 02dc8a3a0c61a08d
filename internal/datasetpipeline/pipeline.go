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

// Package datasetpipeline implements the template-method dataset
// pipelines that turn raw missionary_records rows into cache-ready,
// read-surface datasets: branch summaries, upcoming arrivals, and
// upcoming birthdays.
//
// Grounded on original_source's report_preparation_service.py
// (BaseDatasetPipeline.prepare: load -> validate -> transform ->
// serialize, plus its DatasetValidationError error codes) and, for the
// query shapes each concrete pipeline loads, report_data_repository.py.
package datasetpipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JPMarichal/ccmwf/internal/models"
)

// Pipeline is the template-method contract shared by every dataset
// pipeline: load raw rows, validate them, transform into the dataset's
// DTO shape, and report how many rows it produced.
type Pipeline interface {
	DatasetID() string
	Load(ctx context.Context) ([]models.MissionaryRecord, error)
	Validate(rows []models.MissionaryRecord) error
	Transform(rows []models.MissionaryRecord) (data any, rowCount int, err error)
}

// Result is the output of one pipeline run: the built dataset and its
// accompanying metadata.
type Result struct {
	Metadata models.DatasetMetadata
	Data     any
}

// ValidationError reports which invariant a pipeline's validate step
// rejected. Its Code is a stable dataset error code such as
// invalid_total_missionaries or dataset_missing_rows.
type ValidationError struct {
	DatasetID string
	Code      string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.DatasetID, e.Code, e.Message)
}

// Run executes p's four template steps and builds the accompanying
// DatasetMetadata, including the canonical cache key.
func Run(ctx context.Context, p Pipeline, branchID int, generationDate string) (Result, error) {
	start := time.Now().UTC()

	rows, err := p.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%s: load: %w", p.DatasetID(), err)
	}

	if err := p.Validate(rows); err != nil {
		return Result{}, err
	}

	data, rowCount, err := p.Transform(rows)
	if err != nil {
		return Result{}, err
	}

	metadata := models.DatasetMetadata{
		DatasetID:      p.DatasetID(),
		GeneratedAt:    start,
		GenerationDate: generationDate,
		RowCount:       rowCount,
		CacheKey:       BuildCacheKey(p.DatasetID(), branchID, generationDate),
		BranchID:       branchID,
	}
	return Result{Metadata: metadata, Data: data}, nil
}

// BuildCacheKey builds the canonical "<dataset_id>:<branch_id>:<generation_date>"
// cache key shared with the Cache Layer (C8).
func BuildCacheKey(datasetID string, branchID int, generationDate string) string {
	return fmt.Sprintf("%s:%d:%s", datasetID, branchID, generationDate)
}

// RunAll runs every pipeline in pipelines concurrently, bounded and with
// first-error propagation, the same way the teacher bounds concurrent
// background work with a sync.WaitGroup but with error propagation added
// since a pipeline failure here must reach the HTTP caller.
func RunAll(ctx context.Context, pipelines map[string]Pipeline, branchID int, generationDate string) (map[string]Result, error) {
	results := make(map[string]Result, len(pipelines))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range pipelines {
		id, p := id, p
		g.Go(func() error {
			result, err := Run(gctx, p, branchID, generationDate)
			if err != nil {
				return err
			}
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
