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

// Package objectstore defines the Object-Store Adapter contract (C5):
// folder lookup-or-create, collision-aware upload, folder listing, and
// download, plus the generation-attachment filename rule and district
// inference. The concrete provider SDK is an external collaborator spec.md
// explicitly leaves out of scope; Store is the seam a real Drive/S3/GCS
// client would implement.
//
// Grounded on original_source's drive_service.py
// (ensure_generation_folder, upload_file, format_filename,
// guess_primary_district, _generate_unique_filename).
package objectstore

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/JPMarichal/ccmwf/internal/htmltable"
	"github.com/JPMarichal/ccmwf/internal/normalize"
	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// File is one entry returned by ListFolderFiles.
type File struct {
	ID   string
	Name string
	Size int
}

// Store is the Object-Store Adapter contract.
type Store interface {
	// EnsureFolder searches by exact name under parentID and creates the
	// folder if absent. Concurrent calls for the same (parentID, name)
	// converge to the same folder id.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)

	// Upload resolves a collision-free name within folderID and stores
	// bytes, returning identifiers and links.
	Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (resultmodel.UploadedFile, error)

	// ListFolderFiles lists files under folderID, provider-ordered.
	ListFolderFiles(ctx context.Context, folderID string) ([]File, error)

	// DownloadFile streams back the bytes of a previously uploaded file.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// FilenameForAttachment builds the
// `<generation_date>_<district-or-suffix>_<sanitized-original>` name for
// one generation's attachment. When district is empty, the sanitized
// original alone is used; collision resolution is left to Upload/C1.
//
// Grounded on format_filename: sanitize, strip a leading single-letter
// gender/role prefix token, join with underscores, drop duplicate tokens,
// and enforce the max length.
func FilenameForAttachment(generationDate, district, originalName string) string {
	sanitizedOriginal := normalize.SanitizeFilename(originalName)
	sanitizedOriginal = stripLeadingSingleLetterToken(sanitizedOriginal)

	ext := filepath.Ext(sanitizedOriginal)
	base := strings.TrimSuffix(sanitizedOriginal, ext)

	var components []string
	if generationDate != "" {
		components = append(components, generationDate)
	}
	if cleanedDistrict := sanitizeComponent(district); cleanedDistrict != "" {
		components = append(components, cleanedDistrict)
	}
	if base != "" {
		components = append(components, base)
	}
	if len(components) == 0 {
		components = append(components, "archivo")
	}

	combined := strings.Join(components, "_") + ext
	combined = removeDuplicateTokens(combined)
	return normalize.SanitizeFilename(combined)
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]`)

func removeDuplicateTokens(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	tokens := strings.Split(base, "_")

	seen := make(map[string]bool, len(tokens))
	var kept []string
	for _, tok := range tokens {
		normalized := nonAlphaNum.ReplaceAllString(strings.ToLower(tok), "")
		if normalized == "" {
			kept = append(kept, tok)
			continue
		}
		if len(normalized) == 1 {
			continue // drop bare single-letter prefix tokens (e.g. "F")
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		kept = append(kept, tok)
	}

	cleanedBase := strings.Join(nonEmpty(kept), "_")
	if cleanedBase == "" {
		cleanedBase = base
	}
	return cleanedBase + ext
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func stripLeadingSingleLetterToken(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	tokens := strings.Split(base, "_")
	if len(tokens) <= 1 {
		return name
	}
	idx := 0
	for idx < len(tokens) && len(tokens[idx]) == 1 && isAlpha(tokens[idx]) {
		idx++
	}
	if idx == 0 || idx >= len(tokens) {
		return name
	}
	remainder := strings.Trim(strings.Join(tokens[idx:], "_"), "_")
	if remainder == "" {
		return name
	}
	return remainder + ext
}

func sanitizeComponent(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	sanitized := forbiddenComponentChars.ReplaceAllString(value, "_")
	sanitized = strings.TrimSpace(sanitized)
	sanitized = collapseUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_")
	sanitized = stripSingleLetterPrefixToken(sanitized)
	return sanitized
}

var (
	forbiddenComponentChars = regexp.MustCompile(`[<>:"/\\|?*.\s]+`)
	collapseUnderscores     = regexp.MustCompile(`_+`)
)

func stripSingleLetterPrefixToken(value string) string {
	tokens := strings.Split(value, "_")
	for len(tokens) > 0 && len(tokens[0]) == 1 && isAlpha(tokens[0]) {
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return ""
	}
	remainder := strings.Trim(strings.Join(tokens, "_"), "_")
	if remainder == "" {
		return value
	}
	return remainder
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return s != ""
}

// GuessPrimaryDistrict inspects the parsed table's `distrito`-keyed
// column and returns the first cleaned, digit-bearing candidate.
//
// Grounded on guess_primary_district / _clean_district_candidate.
func GuessPrimaryDistrict(table *htmltable.ParsedTable) (string, bool) {
	if table == nil {
		return "", false
	}
	for _, row := range table.Rows {
		for key, value := range row {
			if !strings.Contains(strings.ToLower(key), "distrito") {
				continue
			}
			candidate := strings.TrimSpace(value)
			if candidate == "" {
				continue
			}
			cleaned := cleanDistrictCandidate(candidate)
			if cleaned != "" && containsDigit(cleaned) {
				return cleaned, true
			}
		}
	}
	return "", false
}

var districtPrefix = regexp.MustCompile(`^[A-Za-z][\s_\-:]+(.+)$`)

func cleanDistrictCandidate(value string) string {
	cleaned := strings.TrimSpace(value)
	for {
		m := districtPrefix.FindStringSubmatch(cleaned)
		if m == nil {
			break
		}
		cleaned = strings.TrimSpace(m[1])
	}
	return cleaned
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// memoryStore is an in-process Store used by tests and by deployments
// that do not need provider durability (e.g. local development).
// Production deployments supply a provider-backed Store satisfying the
// same interface.
type memoryStore struct {
	mu          sync.Mutex
	nextID      int
	folders     map[string]string // "parentID/name" -> folder id
	folderFiles map[string][]File // folder id -> files
	fileData    map[string][]byte
}

// NewMemoryStore builds an in-process Store implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		folders:     make(map[string]string),
		folderFiles: make(map[string][]File),
		fileData:    make(map[string][]byte),
	}
}

func (s *memoryStore) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := parentID + "/" + name
	if id, ok := s.folders[key]; ok {
		return id, nil
	}
	s.nextID++
	id := fmt.Sprintf("folder-%d", s.nextID)
	s.folders[key] = id
	return id, nil
}

func (s *memoryStore) Upload(_ context.Context, folderID, name string, data []byte, _ string) (resultmodel.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists := func(candidate string) bool {
		for _, f := range s.folderFiles[folderID] {
			if f.Name == candidate {
				return true
			}
		}
		return false
	}
	finalName := normalize.ResolveCollision(name, exists)

	s.nextID++
	id := fmt.Sprintf("file-%d", s.nextID)
	s.folderFiles[folderID] = append(s.folderFiles[folderID], File{ID: id, Name: finalName, Size: len(data)})
	s.fileData[id] = data

	return resultmodel.UploadedFile{
		ID:           id,
		Name:         finalName,
		ViewLink:     "memory://view/" + id,
		DownloadLink: "memory://download/" + id,
	}, nil
}

func (s *memoryStore) ListFolderFiles(_ context.Context, folderID string) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := append([]File(nil), s.folderFiles[folderID]...)
	return files, nil
}

func (s *memoryStore) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.fileData[fileID]
	if !ok {
		return nil, fmt.Errorf("%s: %s", resultmodel.ErrDriveDownloadFailed, fileID)
	}
	return data, nil
}
