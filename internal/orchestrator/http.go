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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/JPMarichal/ccmwf/internal/mailgateway"
)

// service identifies this deployment in the health response. Bumped
// alongside breaking HTTP contract changes.
const (
	serviceName    = "ccmwf-ingestion"
	serviceVersion = "1.0.0"
)

// Pinger reports whether a dependency is reachable. Implemented by
// *pgxpool.Pool's Ping method.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes the Orchestrator's operations over HTTP.
type Handler struct {
	orch *Orchestrator
	db   Pinger
}

// NewHandler builds an HTTP Handler in front of orch. db supplies the
// readiness probe's database check.
func NewHandler(orch *Orchestrator, db Pinger) *Handler {
	return &Handler{orch: orch, db: db}
}

func (h *Handler) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process-emails", h.handleProcessEmails)
	mux.HandleFunc("POST /extraccion_generacion", h.handleSyncGeneration)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	mux.HandleFunc("GET /emails/search", h.handleSearch)
	mux.HandleFunc("GET /cache/metrics", h.handleCacheMetrics)
	mux.HandleFunc("GET /datasets/{dataset_id}", h.handleDataset)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func (h *Handler) handleProcessEmails(w http.ResponseWriter, r *http.Request) {
	report := h.orch.ProcessEmails(r.Context())
	if !report.Success {
		writeError(w, http.StatusInternalServerError, errors.New("process_emails: listing unprocessed messages failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": report.Success, "result": report})
}

type syncGenerationRequest struct {
	FechaGeneracion string `json:"fecha_generacion"`
	DriveFolderID   string `json:"drive_folder_id"`
	Force           bool   `json:"force"`
}

func (h *Handler) handleSyncGeneration(w http.ResponseWriter, r *http.Request) {
	var req syncGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := h.orch.SyncGeneration(r.Context(), req.FechaGeneracion, req.DriveFolderID, req.Force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "unconfigured"
	} else if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
	}
	checks["db"] = dbStatus

	cacheStatus := "ok"
	if h.orch.strategy == nil {
		cacheStatus = "unconfigured"
	}
	checks["cache"] = cacheStatus

	status := "ready"
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": status, "checks": checks})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	refs, err := h.orch.SearchMessages(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if refs == nil {
		refs = []mailgateway.MessageRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "emails": refs})
}

func (h *Handler) handleCacheMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.CacheMetrics())
}

func (h *Handler) handleDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("dataset_id")
	branchID := h.orch.cfg.BranchID
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid branch_id: %q", raw))
			return
		}
		branchID = parsed
	}
	generationDate := r.URL.Query().Get("generation_date")

	result, err := h.orch.Dataset(r.Context(), datasetID, branchID, generationDate)
	if err != nil {
		if errors.Is(err, errUnknownDataset) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if errors.Is(err, errInvalidBranch) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dataset": result.Data, "metadata": result.Metadata})
}

// Serve starts the orchestrator's HTTP server on port. It binds
// immediately and signals readiness via the returned ready channel
// before accepting connections. A background goroutine shuts the
// server down when ctx is cancelled; the returned done channel closes
// once that shutdown has completed, so callers can bound their own
// wait with a timeout context.
//
// Grounded on the teacher's internal/webhook/handler.go Serve.
func Serve(ctx context.Context, port int, h *Handler) (ready <-chan struct{}, done <-chan struct{}, err error) {
	server := &http.Server{Handler: h.mux()}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind http port %d: %w", port, err)
	}

	readyCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("orchestrator http server shutting down")
		_ = server.Shutdown(context.Background())
	}()

	go func() {
		defer close(doneCh)
		slog.Info("orchestrator http server listening", "port", port)
		close(readyCh)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("orchestrator http server error", "error", err)
		}
	}()

	return readyCh, doneCh, nil
}
