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

// Package normalize implements the pure, I/O-free coercion functions
// shared by the spreadsheet mapper and the HTML parser: date and boolean
// coercion, subject-pattern matching, and filename sanitization with
// collision resolution.
//
// Grounded on original_source's database_sync_service.py
// (_normalize_boolean, _normalize_date, _normalize_fecha_presencial) and
// drive_service.py (_sanitize_filename, _generate_unique_filename).
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dmyPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// CoerceDate accepts a calendar date already in ISO form (YYYY-MM-DD), a
// D/M/YYYY textual date (day-first, regardless of locale), or an empty
// value, and produces the ISO form or ok=false when absent/invalid.
//
// Idempotent: CoerceDate(CoerceDate(x)) == CoerceDate(x) for the ISO form,
// since a valid ISO date round-trips through this function unchanged.
func CoerceDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.Format("2006-01-02"), true
	}

	if m := dmyPattern.FindStringSubmatch(value); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return "", false
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month || t.Year() != year {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}

	return "", false
}

// truthyTokens coerce to true; case-insensitive and trimmed, per
// SPEC_FULL.md §4.1.
var truthyTokens = map[string]bool{
	"verdadero": true,
	"true":      true,
	"si":        true,
	"sí":        true,
	"1":         true,
	"x":         true,
}

// CoerceBool coerces a textual token to a boolean. Any non-empty value
// not in the truthy set, and the empty value, both coerce to false;
// CoerceBool never produces absence.
func CoerceBool(value string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(value))]
}

// MatchesSubjectPrefix reports whether subject begins with pattern using
// an exact, case-sensitive prefix match. Trailing content is retained by
// the caller for downstream parsing — this function only reports match
// or no-match.
func MatchesSubjectPrefix(subject, pattern string) bool {
	return strings.HasPrefix(subject, pattern)
}

// GenerationDateForm validates the 8-character YYYYMMDD form and reports
// whether it is a parseable Gregorian date.
func GenerationDateForm(value string) bool {
	if len(value) != 8 {
		return false
	}
	_, err := time.Parse("20060102", value)
	return err == nil
}

// FormatGenerationDate converts year/month/day into the YYYYMMDD form.
func FormatGenerationDate(year, month, day int) string {
	return fmt.Sprintf("%04d%02d%02d", year, month, day)
}
