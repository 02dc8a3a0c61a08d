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

// Package orchestrator sequences the Mail Gateway Adapter (C4), the HTML
// Table Extractor (C2), and the Object-Store Adapter (C5) into
// process_incoming, drives the Sync Engine (C6) through sync_generation,
// and exposes a debug read-through to C4's message search — the three
// operations C10 names — plus the HTTP surface in front of them.
//
// Grounded on the teacher's internal/webhook/handler.go (fetch-then-act
// per notification, background processing) and cmd/server/main.go
// (overall phase ordering), and original_source's ingestion_service.py
// process_incoming loop for the per-message validation sequence.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JPMarichal/ccmwf/internal/cache"
	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/datasetpipeline"
	"github.com/JPMarichal/ccmwf/internal/htmltable"
	"github.com/JPMarichal/ccmwf/internal/mailgateway"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/normalize"
	"github.com/JPMarichal/ccmwf/internal/objectstore"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
	"github.com/JPMarichal/ccmwf/internal/syncengine"
)

// pipelineFactory builds the Pipeline instance for one dataset_id, scoped
// to a branch and generation date.
type pipelineFactory func(branchID int, generationDate string) datasetpipeline.Pipeline

// Orchestrator wires the ingestion pipeline's external operations.
type Orchestrator struct {
	cfg       *config.Config
	gateway   mailgateway.Gateway
	files     objectstore.Store
	sync      *syncengine.Engine
	repo      datasetpipeline.Repository
	strategy  cache.Strategy
	factories map[string]pipelineFactory
}

// New builds an Orchestrator from its already-constructed collaborators.
func New(
	cfg *config.Config,
	gateway mailgateway.Gateway,
	files objectstore.Store,
	syncEngine *syncengine.Engine,
	repo datasetpipeline.Repository,
	strategy cache.Strategy,
) *Orchestrator {
	o := &Orchestrator{cfg: cfg, gateway: gateway, files: files, sync: syncEngine, repo: repo, strategy: strategy}
	o.factories = map[string]pipelineFactory{
		"branch_summary": func(branchID int, generationDate string) datasetpipeline.Pipeline {
			return &datasetpipeline.BranchSummaryPipeline{
				Repo: repo, BranchID: branchID, AllowedBranches: cfg.AllowedBranches, GenerationDate: generationDate,
			}
		},
		"upcoming_arrivals": func(branchID int, generationDate string) datasetpipeline.Pipeline {
			return &datasetpipeline.UpcomingArrivalsPipeline{Repo: repo, BranchID: branchID, WindowDays: cfg.UpcomingArrivalsWindow}
		},
		"upcoming_birthdays": func(branchID int, generationDate string) datasetpipeline.Pipeline {
			return &datasetpipeline.UpcomingBirthdaysPipeline{Repo: repo, BranchID: branchID, WindowDays: cfg.UpcomingBirthdaysWindow}
		},
	}
	return o
}

// ProcessEmails runs process_incoming: list unprocessed messages, and for
// each, extract its roster table and upload its attachments, aggregating
// per-message outcomes into one CycleReport.
func (o *Orchestrator) ProcessEmails(ctx context.Context) resultmodel.CycleReport {
	start := time.Now().UTC()
	report := resultmodel.CycleReport{}

	refs, err := o.gateway.ListUnprocessed(ctx, o.cfg.MailSubjectPattern)
	if err != nil {
		slog.Error("list unprocessed messages failed", "error", err)
		report.Finish(start)
		report.Success = false
		return report
	}

	for _, ref := range refs {
		result := o.processOne(ctx, ref)
		report.Add(result)
	}

	report.Finish(start)
	return report
}

// processOne runs one message through validate -> extract -> upload ->
// mark, building its ProcessingResult. A step's failure is recorded, not
// fatal: later steps are skipped but the result is still returned. The
// message's progress is walked through mailgateway's processing state
// machine as each stage completes, so a stage reached out of order is
// caught rather than silently accepted.
func (o *Orchestrator) processOne(ctx context.Context, ref mailgateway.MessageRef) resultmodel.ProcessingResult {
	result := resultmodel.ProcessingResult{MessageID: ref.ID, Subject: ref.Subject}
	state := mailgateway.StateDiscovered

	if !normalize.MatchesSubjectPrefix(ref.Subject, o.cfg.MailSubjectPattern) {
		result.ValidationErrors = append(result.ValidationErrors, resultmodel.ErrSubjectPatternMismatch)
		return result
	}

	msg, err := o.gateway.Fetch(ctx, ref)
	if err != nil {
		result.ValidationErrors = append(result.ValidationErrors, resultmodel.ErrMailFetchFailed)
		return result
	}
	if !advanceState(&state, mailgateway.StateFetched, &result) {
		return result
	}

	result.AttachmentsCount = len(msg.Attachments)
	if len(msg.Attachments) == 0 {
		result.ValidationErrors = append(result.ValidationErrors, resultmodel.ErrAttachmentsMissing)
		return result
	}

	table, tableErrors := htmltable.Extract(msg.BodyHTML, o.cfg.RequiredTableColumns)
	result.TableErrors = tableErrors
	var extraTexts []string
	if table != nil {
		result.ParsedTable = table
		extraTexts = table.ExtraTexts
	}

	generationDate, found := htmltable.ExtractGenerationDate(msg.BodyText, msg.BodyHTML, extraTexts, msg.Subject)
	if !found {
		result.ValidationErrors = append(result.ValidationErrors, resultmodel.ErrFechaGeneracionMissing)
		return result
	}
	result.GenerationDate = generationDate
	if !advanceState(&state, mailgateway.StateParsed, &result) {
		return result
	}

	district, _ := objectstore.GuessPrimaryDistrict(table)

	folderID, err := o.files.EnsureFolder(ctx, o.cfg.AttachmentsFolder, generationDate)
	if err != nil {
		result.UploadErrors = append(result.UploadErrors, resultmodel.UploadError{Stage: "ensure_folder", Code: resultmodel.ErrDriveFolderMissing})
		return result
	}
	result.FolderID = folderID

	for _, att := range msg.Attachments {
		if len(att.Bytes) == 0 {
			result.UploadErrors = append(result.UploadErrors, resultmodel.UploadError{Stage: "upload", Code: resultmodel.ErrDriveAttachmentWithoutData})
			continue
		}
		filename := objectstore.FilenameForAttachment(generationDate, district, att.OriginalName)
		uploaded, err := o.files.Upload(ctx, folderID, filename, att.Bytes, att.ContentType)
		if err != nil {
			result.UploadErrors = append(result.UploadErrors, resultmodel.UploadError{Stage: "upload", Code: resultmodel.ErrDriveUploadFailed})
			continue
		}
		result.UploadedFiles = append(result.UploadedFiles, uploaded)
	}

	if len(result.UploadErrors) != 0 {
		return result
	}
	if !advanceState(&state, mailgateway.StateUploaded, &result) {
		return result
	}

	if err := o.gateway.MarkProcessed(ctx, ref); err == nil {
		if advanceState(&state, mailgateway.StateMarked, &result) {
			result.Success = advanceState(&state, mailgateway.StateCompleted, &result)
		}
	}

	return result
}

// advanceState moves state to next when the processing state machine
// permits it, recording illegal_state_transition and reporting false
// otherwise. The linear pipeline above never actually attempts an illegal
// move; this exists so a future reordering of stages fails loudly instead
// of silently producing a result that skipped one.
func advanceState(state *mailgateway.State, next mailgateway.State, result *resultmodel.ProcessingResult) bool {
	if !mailgateway.CanTransition(*state, next) {
		result.ValidationErrors = append(result.ValidationErrors, resultmodel.ErrIllegalStateTransition)
		return false
	}
	*state = next
	return true
}

// SyncGeneration runs sync_generation: the resumable spreadsheet-to-store
// sync for one (generation_date, folder_id).
func (o *Orchestrator) SyncGeneration(ctx context.Context, generationDate, folderID string, force bool) (models.SyncReport, error) {
	return o.sync.Run(ctx, generationDate, folderID, force, o.cfg.BranchID)
}

// SearchMessages is a debug read-through to the Mail Gateway Adapter.
func (o *Orchestrator) SearchMessages(ctx context.Context, query string) ([]mailgateway.MessageRef, error) {
	refs, err := o.gateway.ListUnprocessed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search_messages: %w", err)
	}
	return refs, nil
}

// errUnknownDataset reports a request for a dataset_id no pipeline
// factory serves.
var errUnknownDataset = fmt.Errorf("unknown_dataset")

// errInvalidBranch reports a request naming a branchID outside the
// configured allow-list.
var errInvalidBranch = fmt.Errorf("%s", resultmodel.ErrInvalidBranch)

// Dataset resolves one named dataset for (branchID, generationDate),
// serving from cache when available and otherwise running the pipeline
// and populating the cache for the next caller. branchID is rejected
// up front when it is not in the configured allow-list, since a
// pipeline's own Load may otherwise silently widen its query (e.g.
// branch_summary aggregates over AllowedBranches regardless of the
// single branchID requested) rather than reject it.
func (o *Orchestrator) Dataset(ctx context.Context, datasetID string, branchID int, generationDate string) (datasetpipeline.Result, error) {
	factory, ok := o.factories[datasetID]
	if !ok {
		return datasetpipeline.Result{}, errUnknownDataset
	}
	if !o.cfg.AllowsBranch(branchID) {
		return datasetpipeline.Result{}, errInvalidBranch
	}

	key := datasetpipeline.BuildCacheKey(datasetID, branchID, generationDate)
	if o.strategy != nil {
		if cached, ok, err := cache.GetDataset(ctx, o.strategy, key); err == nil && ok {
			return cached, nil
		}
	}

	result, err := datasetpipeline.Run(ctx, factory(branchID, generationDate), branchID, generationDate)
	if err != nil {
		return datasetpipeline.Result{}, err
	}

	if o.strategy != nil {
		_ = cache.SetDataset(ctx, o.strategy, key, result, o.cfg.CacheTTL)
	}
	return result, nil
}

// CacheMetrics exposes the Cache Layer's cumulative usage counters.
func (o *Orchestrator) CacheMetrics() cache.Metrics {
	if o.strategy == nil {
		return cache.Metrics{}
	}
	return o.strategy.Metrics()
}
