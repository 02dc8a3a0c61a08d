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

// Package eventbus implements a single-process, synchronous
// publish-subscribe bus: subscribers run in registration order on the
// publishing goroutine, and one subscriber's failure never prevents
// delivery to the rest.
//
// Grounded on the teacher's callback-wiring style in cmd/server/main.go
// (mgr.OnGapDetected, a single synchronous hook run inline) generalized
// to a registry of named events with multiple subscribers, since the
// pack's channel/goroutine-based brokers are all asynchronous — a shape
// SPEC_FULL.md explicitly disallows for this delivery guarantee.
package eventbus

import (
	"context"
	"log/slog"
)

// DatasetInvalidated is the payload of the "dataset.invalidated" event.
type DatasetInvalidated struct {
	GenerationDate string
	BranchID       int
}

// EventDatasetInvalidated is published by the Sync Engine on completion.
const EventDatasetInvalidated = "dataset.invalidated"

// Handler processes one event delivery. An error is logged, not
// propagated to the publisher or to other subscribers.
type Handler func(ctx context.Context, payload any) error

// Bus is a synchronous, in-process event bus.
type Bus struct {
	subscribers map[string][]Handler
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers h to run, in registration order, whenever event is
// published.
func (b *Bus) Subscribe(event string, h Handler) {
	b.subscribers[event] = append(b.subscribers[event], h)
}

// Publish delivers payload synchronously to every subscriber of event, in
// registration order. A subscriber error is logged with code
// "subscriber_failed" and does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, event string, payload any) {
	for _, h := range b.subscribers[event] {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("subscriber panicked", "code", "subscriber_failed", "event", event, "recovered", r)
				}
			}()
			if err := h(ctx, payload); err != nil {
				slog.Error("subscriber failed", "code", "subscriber_failed", "event", event, "error", err)
			}
		}()
	}
}
