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

	"github.com/JPMarichal/ccmwf/internal/eventbus"
)

// SubscribeInvalidation registers strategy to evict every dataset cached
// for a generation's branch whenever the Sync Engine publishes
// dataset.invalidated, matching the "*:<branch_id>:<generation_date>"
// pattern against the canonical "<dataset_id>:<branch_id>:<generation_date>"
// key form.
func SubscribeInvalidation(bus *eventbus.Bus, strategy Strategy) {
	bus.Subscribe(eventbus.EventDatasetInvalidated, func(ctx context.Context, payload any) error {
		evt, ok := payload.(eventbus.DatasetInvalidated)
		if !ok {
			return nil
		}
		pattern := BuildInvalidationPattern(evt.BranchID, evt.GenerationDate)
		return strategy.Invalidate(ctx, pattern)
	})
}
