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

package normalize

import (
	"strings"
	"testing"
)

func TestCoerceDateISO(t *testing.T) {
	got, ok := CoerceDate("2025-07-03")
	if !ok || got != "2025-07-03" {
		t.Fatalf("CoerceDate(iso) = %q, %v", got, ok)
	}
}

func TestCoerceDateDayFirst(t *testing.T) {
	cases := map[string]string{
		"3/7/2025":  "2025-07-03",
		"18/3/2025": "2025-03-18",
	}
	for input, want := range cases {
		got, ok := CoerceDate(input)
		if !ok || got != want {
			t.Errorf("CoerceDate(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
}

func TestCoerceDateInvalid(t *testing.T) {
	if _, ok := CoerceDate("fecha_invalida"); ok {
		t.Fatal("expected CoerceDate to report absence for an invalid value")
	}
	if _, ok := CoerceDate(""); ok {
		t.Fatal("expected CoerceDate to report absence for empty input")
	}
}

func TestCoerceDateIdempotent(t *testing.T) {
	first, _ := CoerceDate("18/3/2025")
	second, ok := CoerceDate(first)
	if !ok || second != first {
		t.Fatalf("CoerceDate not idempotent: %q then %q", first, second)
	}
}

func TestCoerceBool(t *testing.T) {
	truthy := []string{"verdadero", "TRUE", " si ", "sí", "1", "x", "X"}
	for _, v := range truthy {
		if !CoerceBool(v) {
			t.Errorf("CoerceBool(%q) = false, want true", v)
		}
	}
	falsy := []string{"", "no", "false", "2", "yes"}
	for _, v := range falsy {
		if CoerceBool(v) {
			t.Errorf("CoerceBool(%q) = true, want false", v)
		}
	}
}

func TestMatchesSubjectPrefix(t *testing.T) {
	pattern := "Misioneros que llegan"
	if !MatchesSubjectPrefix("Misioneros que llegan el 10 de enero", pattern) {
		t.Fatal("expected prefix match")
	}
	if MatchesSubjectPrefix("misioneros que llegan el 10 de enero", pattern) {
		t.Fatal("match must be case-sensitive")
	}
	if MatchesSubjectPrefix("Otro asunto", pattern) {
		t.Fatal("unrelated subject must not match")
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename("a/b?*.pdf")
	if got != "a_b__.pdf" {
		t.Fatalf("SanitizeFilename = %q, want %q", got, "a_b__.pdf")
	}
}

func TestSanitizeFilenameTruncatesPreservingExtension(t *testing.T) {
	long := strings.Repeat("x", 200) + ".pdf"
	got := SanitizeFilename(long)
	if len([]rune(got)) > 100 {
		t.Fatalf("expected truncation to <=100 code points, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	once := SanitizeFilename("a b  c<>.txt")
	twice := SanitizeFilename(once)
	if once != twice {
		t.Fatalf("sanitize not idempotent: %q then %q", once, twice)
	}
}

func TestResolveCollisionNoConflict(t *testing.T) {
	got := ResolveCollision("report.xlsx", func(string) bool { return false })
	if got != "report.xlsx" {
		t.Fatalf("expected unchanged name, got %q", got)
	}
}

func TestResolveCollisionRetriesOnPersistentConflict(t *testing.T) {
	seen := map[string]bool{"report.xlsx": true}
	attempts := 0
	exists := func(name string) bool {
		attempts++
		if attempts <= 2 {
			// force two collisions before accepting the third candidate
			seen[name] = true
			return true
		}
		return seen[name]
	}
	got := ResolveCollision("report.xlsx", exists)
	if got == "report.xlsx" {
		t.Fatal("expected a disambiguated name")
	}
	if !strings.HasSuffix(got, ".xlsx") {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}
