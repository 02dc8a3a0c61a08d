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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/JPMarichal/ccmwf/internal/config"
	"github.com/JPMarichal/ccmwf/internal/models"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
	"github.com/JPMarichal/ccmwf/internal/retry"
)

// mailAPIBaseURL mirrors the teacher's graphBaseURL constant: the
// client-credentials flow and the REST surface below are both shaped
// after Microsoft Graph's user-mailbox API, generalized to any provider
// exposing the same resource model.
const mailAPIBaseURL = "https://graph.microsoft.com/v1.0"

// OAuthGateway implements Gateway against a REST mailbox API secured by
// the OAuth2 client-credentials flow.
//
// Grounded on the teacher's cmd/server/main.go (clientcredentials.Config
// wiring) and internal/graph/fetcher.go (HTTP request shape).
type OAuthGateway struct {
	httpClient *http.Client
	baseURL    string
	mailUser   string
	marker     string
}

// NewOAuthGateway builds the OAuth-mediated mail gateway variant from cfg.
func NewOAuthGateway(cfg *config.Config) *OAuthGateway {
	creds := &clientcredentials.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.OAuthTenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return &OAuthGateway{
		httpClient: creds.Client(context.Background()),
		baseURL:    mailAPIBaseURL,
		mailUser:   cfg.MailUser,
		marker:     cfg.ProcessedMarker,
	}
}

type apiMessageList struct {
	Value []apiMessage `json:"value"`
}

type apiMessage struct {
	ID              string   `json:"id"`
	Subject         string   `json:"subject"`
	ReceivedAt      string   `json:"receivedDateTime"`
	From            apiFrom  `json:"from"`
	BodyContentType string   `json:"-"`
	Body            apiBody  `json:"body"`
	HasAttachments  bool     `json:"hasAttachments"`
	Categories      []string `json:"categories"`
}

type apiFrom struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type apiBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type apiAttachment struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ContentType          string `json:"contentType"`
	ContentBytes         string `json:"contentBytes"`
}

// ListUnprocessed searches unread messages whose subject starts with
// subjectPrefix and that have not yet been tagged with the processed
// marker category.
func (g *OAuthGateway) ListUnprocessed(ctx context.Context, subjectPrefix string) ([]MessageRef, error) {
	endpoint := fmt.Sprintf("%s/users/%s/mailFolders/inbox/messages?$filter=startsWith(subject,'%s') and isRead eq false",
		g.baseURL, url.PathEscape(g.mailUser), url.QueryEscape(subjectPrefix))

	var list apiMessageList
	if err := g.getJSON(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}

	refs := make([]MessageRef, 0, len(list.Value))
	for _, m := range list.Value {
		if containsCategory(m.Categories, g.marker) {
			continue
		}
		refs = append(refs, MessageRef{ID: m.ID, Subject: m.Subject})
	}
	return refs, nil
}

// Fetch retrieves the full message body and every attachment's bytes.
func (g *OAuthGateway) Fetch(ctx context.Context, ref MessageRef) (*models.IncomingMessage, error) {
	endpoint := fmt.Sprintf("%s/users/%s/messages/%s?$select=id,subject,from,body,receivedDateTime,hasAttachments",
		g.baseURL, url.PathEscape(g.mailUser), url.PathEscape(ref.ID))

	var raw apiMessage
	if err := g.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}

	msg := &models.IncomingMessage{
		ID:      raw.ID,
		Subject: raw.Subject,
		Sender:  raw.From.EmailAddress.Address,
	}
	if t, err := time.Parse(time.RFC3339, raw.ReceivedAt); err == nil {
		msg.ReceivedAt = t
	}
	if raw.Body.ContentType == "html" {
		msg.BodyHTML = raw.Body.Content
	} else {
		msg.BodyText = raw.Body.Content
	}

	if raw.HasAttachments {
		attachments, err := g.fetchAttachments(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		msg.Attachments = attachments
	}
	return msg, nil
}

func (g *OAuthGateway) fetchAttachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	endpoint := fmt.Sprintf("%s/users/%s/messages/%s/attachments",
		g.baseURL, url.PathEscape(g.mailUser), url.PathEscape(messageID))

	var list struct {
		Value []apiAttachment `json:"value"`
	}
	if err := g.getJSON(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
	}

	attachments := make([]models.Attachment, 0, len(list.Value))
	for _, a := range list.Value {
		decoded, err := base64.StdEncoding.DecodeString(a.ContentBytes)
		if err != nil {
			continue
		}
		attachments = append(attachments, models.Attachment{
			OriginalName: a.Name,
			ContentType:  a.ContentType,
			Bytes:        decoded,
			Size:         len(decoded),
		})
	}
	return attachments, nil
}

// MarkProcessed tags the message with the configured marker category.
// Applying the same category twice is a no-op on the provider side, so
// this call is naturally idempotent.
func (g *OAuthGateway) MarkProcessed(ctx context.Context, ref MessageRef) error {
	endpoint := fmt.Sprintf("%s/users/%s/messages/%s", g.baseURL, url.PathEscape(g.mailUser), url.PathEscape(ref.ID))
	payload, _ := json.Marshal(map[string]any{"categories": []string{g.marker}})

	return retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", resultmodel.ErrMailFetchFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s: status %d", resultmodel.ErrMailFetchFailed, resp.StatusCode)
		}
		return nil
	})
}

func (g *OAuthGateway) getJSON(ctx context.Context, endpoint string, out any) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func containsCategory(categories []string, marker string) bool {
	for _, c := range categories {
		if c == marker {
			return true
		}
	}
	return false
}
