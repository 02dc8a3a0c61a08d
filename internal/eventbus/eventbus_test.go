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

package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := New()
	var order []int
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		order = append(order, 1)
		return nil
	})
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		order = append(order, 2)
		return nil
	})

	bus.Publish(context.Background(), "evt", nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestPublishContinuesAfterSubscriberError(t *testing.T) {
	bus := New()
	secondCalled := false
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		return errors.New("boom")
	})
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		secondCalled = true
		return nil
	})

	bus.Publish(context.Background(), "evt", nil)

	if !secondCalled {
		t.Fatal("expected second subscriber to still run after first failed")
	}
}

func TestPublishContinuesAfterSubscriberPanic(t *testing.T) {
	bus := New()
	secondCalled := false
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		panic("unexpected")
	})
	bus.Subscribe("evt", func(ctx context.Context, payload any) error {
		secondCalled = true
		return nil
	})

	bus.Publish(context.Background(), "evt", nil)

	if !secondCalled {
		t.Fatal("expected second subscriber to still run after first panicked")
	}
}

func TestPublishDeliversPayload(t *testing.T) {
	bus := New()
	var got DatasetInvalidated
	bus.Subscribe(EventDatasetInvalidated, func(ctx context.Context, payload any) error {
		got = payload.(DatasetInvalidated)
		return nil
	})

	bus.Publish(context.Background(), EventDatasetInvalidated, DatasetInvalidated{GenerationDate: "20250703", BranchID: 5})

	if got.GenerationDate != "20250703" || got.BranchID != 5 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
