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

// Package models defines the data structures shared across the ingestion
// pipeline: the inbound mailbox message, its attachments, and the stored
// file record produced once an attachment is uploaded.
//
// Grounded on the teacher's internal/models/email.go (plain DTO structs
// with JSON tags) and original_source's models.py (EmailMessage,
// EmailAttachment).
package models

import "time"

// Attachment represents a file attached to an incoming message, still
// owned by the orchestrator until handed to the object-store adapter.
type Attachment struct {
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Bytes        []byte `json:"-"`
	Size         int    `json:"size"`
}

// IncomingMessage is the mailbox-native message the Mail Gateway Adapter
// hands to the orchestrator. Read-only to the core; consumed once per
// cycle.
type IncomingMessage struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	ReceivedAt  time.Time    `json:"received_at"`
	BodyText    string       `json:"body_text"`
	BodyHTML    string       `json:"body_html"`
	Attachments []Attachment `json:"attachments"`
}

// StoredFile is the record produced by the Object-Store Adapter once an
// attachment is durably uploaded.
type StoredFile struct {
	ID           string `json:"id"`
	FinalName    string `json:"final_name"`
	FolderID     string `json:"folder_id"`
	ViewLink     string `json:"view_link"`
	DownloadLink string `json:"download_link"`
	Size         int    `json:"size"`
}
