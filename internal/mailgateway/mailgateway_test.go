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

package mailgateway

import (
	"testing"

	"github.com/JPMarichal/ccmwf/internal/config"
)

func TestNewUnsupportedProvider(t *testing.T) {
	cfg := &config.Config{MailProvider: "smtp"}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewSelectsVariant(t *testing.T) {
	oauthGw, err := New(&config.Config{MailProvider: config.MailProviderOAuth})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := oauthGw.(*OAuthGateway); !ok {
		t.Fatalf("expected *OAuthGateway, got %T", oauthGw)
	}

	imapGw, err := New(&config.Config{MailProvider: config.MailProviderIMAP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := imapGw.(*IMAPGateway); !ok {
		t.Fatalf("expected *IMAPGateway, got %T", imapGw)
	}
}

func TestCanTransitionHappyPath(t *testing.T) {
	steps := []State{StateDiscovered, StateFetched, StateParsed, StateUploaded, StateMarked, StateCompleted}
	for i := 0; i+1 < len(steps); i++ {
		if !CanTransition(steps[i], steps[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", steps[i], steps[i+1])
		}
	}
}

func TestCanTransitionUploadedToPersistedThenMarked(t *testing.T) {
	if !CanTransition(StateUploaded, StatePersisted) {
		t.Fatal("expected Uploaded -> Persisted to be legal")
	}
	if !CanTransition(StatePersisted, StateMarked) {
		t.Fatal("expected Persisted -> Marked to be legal")
	}
}

func TestCanTransitionRejectsSkippingUpload(t *testing.T) {
	if CanTransition(StateParsed, StateMarked) {
		t.Fatal("expected Parsed -> Marked to be illegal: marking requires upload first")
	}
}

func TestCanTransitionAnyStateToFailed(t *testing.T) {
	for state := range legalTransitions {
		if state == StateCompleted || state == StateFailed {
			continue
		}
		if !CanTransition(state, StateFailed) {
			t.Fatalf("expected %s -> Failed to be legal", state)
		}
	}
}

func TestParseSearchUIDs(t *testing.T) {
	uids := parseSearchUIDs([]string{"SEARCH 12 14 19", "OTHER stuff"})
	if len(uids) != 3 || uids[0] != "12" || uids[2] != "19" {
		t.Fatalf("unexpected uids: %v", uids)
	}
}

func TestQuoteIMAPEscapesSpecialChars(t *testing.T) {
	got := quoteIMAP(`say "hi" \ there`)
	want := `"say \"hi\" \\ there"`
	if got != want {
		t.Fatalf("quoteIMAP = %q, want %q", got, want)
	}
}

func TestContainsCategory(t *testing.T) {
	if !containsCategory([]string{"foo", "ccm-processed"}, "ccm-processed") {
		t.Fatal("expected marker to be found")
	}
	if containsCategory([]string{"foo"}, "ccm-processed") {
		t.Fatal("expected marker absent")
	}
}
