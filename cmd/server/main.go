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

// CCM Missionary Ingestion Service
//
// Entry point for the Go ingestion service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and, if configured, Redis
//  3. Constructs the Mail Gateway Adapter, Object-Store Adapter, Sync
//     Engine, Dataset Pipelines, Cache Layer, and Event Bus
//  4. Wires the Cache Layer to the Sync Engine's dataset.invalidated event
//  5. Serves the orchestrator's HTTP surface
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JPMarichal/ccmwf/internal/cache"
	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/datasetpipeline"
	"github.com/JPMarichal/ccmwf/internal/eventbus"
	"github.com/JPMarichal/ccmwf/internal/logging"
	"github.com/JPMarichal/ccmwf/internal/mailgateway"
	"github.com/JPMarichal/ccmwf/internal/objectstore"
	"github.com/JPMarichal/ccmwf/internal/orchestrator"
	"github.com/JPMarichal/ccmwf/internal/syncengine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	handler, logCloser, err := logging.NewHandler(cfg.LogFilePath)
	if err != nil {
		slog.Error("failed to open log file", "path", cfg.LogFilePath, "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(slog.New(handler))

	slog.Info("starting ccmwf ingestion service",
		"branch_id", cfg.BranchID,
		"mail_provider", cfg.MailProvider,
		"cache_provider", cfg.CacheProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	gateway, err := mailgateway.New(cfg)
	if err != nil {
		slog.Error("failed to construct mail gateway", "error", err)
		os.Exit(1)
	}

	files := objectstore.NewMemoryStore()

	bus := eventbus.New()

	syncStore, err := syncengine.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise sync store", "error", err)
		os.Exit(1)
	}
	syncEngine := syncengine.NewEngine(syncStore, files, bus)

	repo := datasetpipeline.NewPostgresRepository(pgPool)

	strategy, err := cache.New(cfg)
	if err != nil {
		slog.Error("failed to construct cache strategy", "error", err)
		os.Exit(1)
	}
	cache.SubscribeInvalidation(bus, strategy)

	orch := orchestrator.New(cfg, gateway, files, syncEngine, repo, strategy)
	httpHandler := orchestrator.NewHandler(orch, pgPool)

	ready, done, err := orchestrator.Serve(ctx, cfg.HTTPPort, httpHandler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("ingestion service ready", "port", cfg.HTTPPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		slog.Error("http server shutdown timed out")
	}

	slog.Info("ingestion service stopped")
}
