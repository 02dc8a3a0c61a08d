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
	"encoding/json"
	"fmt"
	"time"

	"github.com/JPMarichal/ccmwf/internal/datasetpipeline"
	"github.com/JPMarichal/ccmwf/internal/models"
)

// Entry is the JSON envelope stored for one cached dataset, bundling its
// metadata alongside the serialized dataset payload.
type Entry struct {
	Metadata models.DatasetMetadata `json:"metadata"`
	Data     json.RawMessage        `json:"data"`
}

// GetDataset reads a cached datasetpipeline.Result for key, reporting
// whether a live entry was found. CacheHit is stamped true on the
// returned metadata.
func GetDataset(ctx context.Context, strategy Strategy, key string) (datasetpipeline.Result, bool, error) {
	raw, ok, err := strategy.Get(ctx, key)
	if err != nil || !ok {
		return datasetpipeline.Result{}, false, err
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return datasetpipeline.Result{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	entry.Metadata.CacheHit = true
	return datasetpipeline.Result{Metadata: entry.Metadata, Data: entry.Data}, true, nil
}

// SetDataset writes result under key with the given absolute ttl.
func SetDataset(ctx context.Context, strategy Strategy, key string, result datasetpipeline.Result, ttl time.Duration) error {
	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("encode cache entry data: %w", err)
	}
	entry := Entry{Metadata: result.Metadata, Data: data}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return strategy.Set(ctx, key, raw, ttl)
}
