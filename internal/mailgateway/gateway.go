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

// Package mailgateway is polymorphic over the capability set
// {search_unread_by_subject, fetch_message, download_attachment,
// mark_processed}, with an OAuth-mediated API variant and an
// IMAP-mediated protocol variant sharing the Gateway contract.
//
// Grounded on the teacher's internal/graph/fetcher.go (HTTP client shape,
// context-aware fetch) and internal/webhook/handler.go (message
// reference handling), plus BrianLeishman-go-imap's conn.go/auth.go for
// the IMAP variant's connection and authentication shape and its use of
// jhillyerd/enmime to turn a fetched message into attachments.
package mailgateway

import (
	"context"
	"fmt"

	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/models"
)

// MessageRef identifies one mailbox-native message, opaque to the core.
type MessageRef struct {
	ID      string
	Subject string
}

// Gateway is the capability set every Mail Gateway Adapter variant
// implements.
type Gateway interface {
	// ListUnprocessed returns messages whose subject matches
	// subjectPrefix and that do not yet carry the processed marker.
	// Ordering is mailbox-native.
	ListUnprocessed(ctx context.Context, subjectPrefix string) ([]MessageRef, error)

	// Fetch retrieves the full message content, including attachments.
	Fetch(ctx context.Context, ref MessageRef) (*models.IncomingMessage, error)

	// MarkProcessed applies the durable processed marker. Idempotent: a
	// second call for the same ref is a no-op.
	MarkProcessed(ctx context.Context, ref MessageRef) error
}

// State is one stage of a message's processing lifecycle.
type State string

const (
	StateDiscovered State = "discovered"
	StateFetched    State = "fetched"
	StateParsed     State = "parsed"
	StateUploaded   State = "uploaded"
	StatePersisted  State = "persisted"
	StateMarked     State = "marked"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// legalTransitions encodes the state machine from SPEC_FULL.md §4.4:
// Discovered → Fetched → Parsed → Uploaded → Persisted → Marked →
// Completed, with any state able to fail. Marked requires Uploaded to
// have already happened; Persisted may lag behind Marked since
// persistence does not gate marking.
var legalTransitions = map[State][]State{
	StateDiscovered: {StateFetched, StateFailed},
	StateFetched:    {StateParsed, StateFailed},
	StateParsed:     {StateUploaded, StateFailed},
	StateUploaded:   {StatePersisted, StateMarked, StateFailed},
	StatePersisted:  {StateMarked, StateFailed},
	StateMarked:     {StatePersisted, StateCompleted, StateFailed},
	StateCompleted:  nil,
	StateFailed:     nil,
}

// CanTransition reports whether moving a message from one state to
// another is legal under the processing state machine.
func CanTransition(from, to State) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// New constructs the Gateway variant selected by cfg.MailProvider.
func New(cfg *config.Config) (Gateway, error) {
	switch cfg.MailProvider {
	case config.MailProviderOAuth:
		return NewOAuthGateway(cfg), nil
	case config.MailProviderIMAP:
		return NewIMAPGateway(cfg), nil
	default:
		return nil, fmt.Errorf("mail_provider_unsupported: %q", cfg.MailProvider)
	}
}
