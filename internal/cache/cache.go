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

// Package cache implements the dataset Cache Layer (C8): a polymorphic
// strategy over {get, set(ttl), invalidate(prefix), metrics}, with an
// in-process and a Redis-backed variant, wired to the event bus so a
// dataset.invalidated event evicts the affected keys.
//
// Grounded on original_source's cache_strategies.py (CacheStrategy,
// InMemoryCacheStrategy, RedisCacheStrategy, CacheMetrics) and the
// teacher's dedup.Filter for the in-process mutex-guarded-map shape.
package cache

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of cumulative cache usage counters.
type Metrics struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Writes        uint64 `json:"writes"`
	Invalidations uint64 `json:"invalidations"`
}

// counters holds the live atomic counters backing a Metrics snapshot.
type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	writes        atomic.Uint64
	invalidations atomic.Uint64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Strategy is the capability set every cache variant implements.
type Strategy interface {
	// Get returns the cached value for key and whether it was present
	// and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with an absolute expiration ttl from
	// now. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate evicts every key matching pattern, where "*" matches
	// any run of characters (the same glob grammar Redis SCAN MATCH
	// uses), e.g. "*:5:20250703".
	Invalidate(ctx context.Context, pattern string) error
	// Metrics returns a read-only snapshot of cumulative counters.
	Metrics() Metrics
}

// BuildInvalidationPattern builds the "*:<branch_id>:<generation_date>"
// pattern the Sync Engine's dataset.invalidated event matches against,
// evicting every dataset_id cached for that branch and generation.
func BuildInvalidationPattern(branchID int, generationDate string) string {
	return "*:" + strconv.Itoa(branchID) + ":" + generationDate
}

// globToRegexp compiles a "*"-wildcard glob pattern into an anchored
// regular expression matching the whole key.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
