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

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/JPMarichal/ccmwf/internal/cache"
	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/mailgateway"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/objectstore"
)

const sampleHTML = `<html><body>Generacion del 3 de julio de 2025<table>
<tr><th>ID</th><th>Distrito</th><th>Nombre</th></tr>
<tr><td>1</td><td>Distrito 1</td><td>Elder Smith</td></tr>
</table></body></html>`

type fakeGateway struct {
	refs     []mailgateway.MessageRef
	fetchErr error
	marked   []string
	msgByID  map[string]*models.IncomingMessage
}

func (f *fakeGateway) ListUnprocessed(ctx context.Context, subjectPrefix string) ([]mailgateway.MessageRef, error) {
	return f.refs, nil
}

func (f *fakeGateway) Fetch(ctx context.Context, ref mailgateway.MessageRef) (*models.IncomingMessage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msg, ok := f.msgByID[ref.ID]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (f *fakeGateway) MarkProcessed(ctx context.Context, ref mailgateway.MessageRef) error {
	f.marked = append(f.marked, ref.ID)
	return nil
}

type fakeRepo struct {
	rows []models.MissionaryRecord
}

func (f *fakeRepo) LatestGenerationDate(ctx context.Context, branchIDs []int) (string, error) {
	return "20250703", nil
}

func (f *fakeRepo) FetchByGeneration(ctx context.Context, generationDate string, branchIDs []int) ([]models.MissionaryRecord, error) {
	return f.rows, nil
}

func (f *fakeRepo) FetchActiveByBranch(ctx context.Context, branchID int) ([]models.MissionaryRecord, error) {
	return f.rows, nil
}

func newTestOrchestrator(gw *fakeGateway, repo *fakeRepo) *Orchestrator {
	cfg := &config.Config{
		MailSubjectPattern: "CCM",
		AttachmentsFolder:  "root",
		BranchID:           5,
		AllowedBranches:    []int{5},
	}
	return New(cfg, gw, objectstore.NewMemoryStore(), nil, repo, cache.NewMemoryStrategy())
}

func TestProcessEmailsUploadsAttachmentsAndMarksProcessed(t *testing.T) {
	gw := &fakeGateway{
		refs: []mailgateway.MessageRef{{ID: "m1", Subject: "CCM Reporte"}},
		msgByID: map[string]*models.IncomingMessage{
			"m1": {
				ID:      "m1",
				Subject: "CCM Reporte",
				BodyHTML: sampleHTML,
				Attachments: []models.Attachment{
					{OriginalName: "foto.jpg", ContentType: "image/jpeg", Bytes: []byte("data")},
				},
			},
		},
	}
	orch := newTestOrchestrator(gw, &fakeRepo{})

	report := orch.ProcessEmails(context.Background())

	if !report.Success {
		t.Fatalf("expected cycle to complete, got %+v", report)
	}
	if report.Processed != 1 || report.Errors != 0 {
		t.Fatalf("expected 1 processed 0 errors, got processed=%d errors=%d", report.Processed, report.Errors)
	}
	if len(gw.marked) != 1 || gw.marked[0] != "m1" {
		t.Fatalf("expected message m1 marked processed, got %v", gw.marked)
	}
	if !report.Details[0].Success {
		t.Fatalf("expected detail success, got %+v", report.Details[0])
	}
}

func TestProcessEmailsRecordsValidationErrorWithoutAttachments(t *testing.T) {
	gw := &fakeGateway{
		refs: []mailgateway.MessageRef{{ID: "m2", Subject: "CCM Reporte"}},
		msgByID: map[string]*models.IncomingMessage{
			"m2": {ID: "m2", Subject: "CCM Reporte", BodyHTML: sampleHTML},
		},
	}
	orch := newTestOrchestrator(gw, &fakeRepo{})

	report := orch.ProcessEmails(context.Background())

	if report.Errors != 1 || report.Processed != 0 {
		t.Fatalf("expected 1 error 0 processed, got %+v", report)
	}
	if len(gw.marked) != 0 {
		t.Fatalf("expected no message marked processed, got %v", gw.marked)
	}
}

func TestDatasetServesFromCacheOnSecondCall(t *testing.T) {
	repo := &fakeRepo{rows: []models.MissionaryRecord{
		{ID: 1, District: "Distrito 1", Active: true, BranchIDNum: 5, Arrival: "20250710", Departure: "20260101"},
		{ID: 2, District: "Distrito 2", Active: true, BranchIDNum: 5, Arrival: "20250712", Departure: "20260101"},
	}}
	orch := newTestOrchestrator(&fakeGateway{}, repo)

	first, err := orch.Dataset(context.Background(), "branch_summary", 5, "20250703")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Fatal("expected first call to be a cache miss")
	}

	second, err := orch.Dataset(context.Background(), "branch_summary", 5, "20250703")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Fatal("expected second call to be served from cache")
	}

	if orch.CacheMetrics().Hits != 1 {
		t.Fatalf("expected 1 cache hit, got %+v", orch.CacheMetrics())
	}
}

func TestDatasetRejectsUnknownID(t *testing.T) {
	orch := newTestOrchestrator(&fakeGateway{}, &fakeRepo{})
	if _, err := orch.Dataset(context.Background(), "nonexistent", 5, "20250703"); !errors.Is(err, errUnknownDataset) {
		t.Fatalf("expected errUnknownDataset, got %v", err)
	}
}

// TestDatasetRejectsDisallowedBranch exercises the rejection path at the
// orchestrator boundary: branch_summary's own Load aggregates over
// AllowedBranches regardless of the requested branchID, so the
// allow-list must be enforced before the pipeline runs, not inside it.
func TestDatasetRejectsDisallowedBranch(t *testing.T) {
	orch := newTestOrchestrator(&fakeGateway{}, &fakeRepo{})
	if _, err := orch.Dataset(context.Background(), "branch_summary", 999, "20250703"); !errors.Is(err, errInvalidBranch) {
		t.Fatalf("expected errInvalidBranch, got %v", err)
	}
}

// TestDatasetAllowsOverrideBranchWithinAllowList covers the override
// path: a branch named in AllowedBranches but different from the
// default BranchID is still served.
func TestDatasetAllowsOverrideBranchWithinAllowList(t *testing.T) {
	repo := &fakeRepo{rows: []models.MissionaryRecord{
		{ID: 1, District: "Distrito 1", Active: true, BranchIDNum: 7, Arrival: "20250710", Departure: "20260101"},
	}}
	cfg := &config.Config{
		MailSubjectPattern: "CCM",
		AttachmentsFolder:  "root",
		BranchID:           5,
		AllowedBranches:    []int{5, 7},
	}
	orch := New(cfg, &fakeGateway{}, objectstore.NewMemoryStore(), nil, repo, cache.NewMemoryStrategy())

	if _, err := orch.Dataset(context.Background(), "branch_summary", 7, "20250703"); err != nil {
		t.Fatalf("expected branch 7 to be served, got %v", err)
	}
}

func TestSearchMessagesReturnsGatewayResults(t *testing.T) {
	gw := &fakeGateway{refs: []mailgateway.MessageRef{{ID: "m1", Subject: "CCM Reporte"}}}
	orch := newTestOrchestrator(gw, &fakeRepo{})

	refs, err := orch.SearchMessages(context.Background(), "CCM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "m1" {
		t.Fatalf("unexpected search result: %+v", refs)
	}
}
