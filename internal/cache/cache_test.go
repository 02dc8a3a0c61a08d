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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/JPMarichal/ccmwf/internal/datasetpipeline"
	"github.com/JPMarichal/ccmwf/internal/eventbus"
	"github.com/JPMarichal/ccmwf/internal/models"
)

func TestMemoryStrategySetGetRoundTrip(t *testing.T) {
	m := NewMemoryStrategy()
	ctx := context.Background()

	if err := m.Set(ctx, "branch_summary:5:20250703", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, ok, err := m.Get(ctx, "branch_summary:5:20250703")
	if err != nil || !ok || string(value) != "payload" {
		t.Fatalf("expected cache hit with payload, got ok=%v err=%v value=%s", ok, err, value)
	}

	metrics := m.Metrics()
	if metrics.Writes != 1 || metrics.Hits != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestMemoryStrategyMissCountsMetric(t *testing.T) {
	m := NewMemoryStrategy()
	_, ok, err := m.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if m.Metrics().Misses != 1 {
		t.Fatalf("expected 1 miss, got %+v", m.Metrics())
	}
}

func TestMemoryStrategyExpiresEntries(t *testing.T) {
	m := NewMemoryStrategy()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok, err := m.Get(ctx, "k")
	if err != nil || ok {
		t.Fatalf("expected expired entry to miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStrategyInvalidateMatchesWildcardPattern(t *testing.T) {
	m := NewMemoryStrategy()
	ctx := context.Background()
	_ = m.Set(ctx, "branch_summary:5:20250703", []byte("a"), 0)
	_ = m.Set(ctx, "upcoming_arrivals:5:20250703", []byte("b"), 0)
	_ = m.Set(ctx, "branch_summary:6:20250703", []byte("c"), 0)

	if err := m.Invalidate(ctx, BuildInvalidationPattern(5, "20250703")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, _ := m.Get(ctx, "branch_summary:5:20250703"); ok {
		t.Fatal("expected branch_summary:5:... to be evicted")
	}
	if _, ok, _ := m.Get(ctx, "upcoming_arrivals:5:20250703"); ok {
		t.Fatal("expected upcoming_arrivals:5:... to be evicted")
	}
	if _, ok, _ := m.Get(ctx, "branch_summary:6:20250703"); !ok {
		t.Fatal("expected branch_summary:6:... (different branch) to survive")
	}
	if m.Metrics().Invalidations != 2 {
		t.Fatalf("expected 2 invalidations, got %+v", m.Metrics())
	}
}

func TestSubscribeInvalidationEvictsOnEvent(t *testing.T) {
	m := NewMemoryStrategy()
	bus := eventbus.New()
	SubscribeInvalidation(bus, m)

	ctx := context.Background()
	_ = m.Set(ctx, "branch_summary:5:20250703", []byte("a"), 0)

	bus.Publish(ctx, eventbus.EventDatasetInvalidated, eventbus.DatasetInvalidated{GenerationDate: "20250703", BranchID: 5})

	if _, ok, _ := m.Get(ctx, "branch_summary:5:20250703"); ok {
		t.Fatal("expected entry to be evicted by dataset.invalidated subscriber")
	}
}

func TestGetSetDatasetRoundTrip(t *testing.T) {
	m := NewMemoryStrategy()
	ctx := context.Background()

	result := datasetpipeline.Result{
		Metadata: models.DatasetMetadata{DatasetID: "branch_summary", GenerationDate: "20250703", RowCount: 3, CacheKey: "branch_summary:5:20250703"},
		Data:     models.BranchSummary{BranchID: 5, GenerationDate: "20250703", TotalMissionaries: 3},
	}

	if err := SetDataset(ctx, m, result.Metadata.CacheKey, result, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := GetDataset(ctx, m, result.Metadata.CacheKey)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if !got.Metadata.CacheHit {
		t.Fatal("expected CacheHit to be stamped true")
	}
	if got.Metadata.RowCount != 3 {
		t.Fatalf("unexpected row count: %+v", got.Metadata)
	}
}
