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
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

// MemoryStrategy is an in-process, mutex-guarded map cache. Suitable for
// single-instance deployments; does not share state across processes.
type MemoryStrategy struct {
	mu    sync.Mutex
	store map[string]memoryEntry
	counters
}

// NewMemoryStrategy builds an empty MemoryStrategy.
func NewMemoryStrategy() *MemoryStrategy {
	return &MemoryStrategy{store: make(map[string]memoryEntry)}
}

func (m *MemoryStrategy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.store, key)
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	return entry.value, true, nil
}

// Set stores value under key. A negative ttl discards the write instead
// of storing an immediately-expired entry; a zero ttl stores the value
// with no expiry.
func (m *MemoryStrategy) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.store[key] = entry
	m.writes.Add(1)
	return nil
}

func (m *MemoryStrategy) Invalidate(ctx context.Context, pattern string) error {
	matcher, err := globToRegexp(pattern)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed uint64
	for key := range m.store {
		if matcher.MatchString(key) {
			delete(m.store, key)
			removed++
		}
	}
	if removed > 0 {
		m.invalidations.Add(removed)
	}
	return nil
}

func (m *MemoryStrategy) Metrics() Metrics {
	return m.snapshot()
}
