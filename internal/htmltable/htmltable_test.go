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

package htmltable

import (
	"testing"

	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

const sampleTableHTML = `
<html><body>
<p>Favor de revisar la lista adjunta.</p>
<table>
  <tr><th>Distrito</th><th>Nombre</th><th>Rama</th><th>Compañerismo</th></tr>
  <tr><td>D01</td><td>Elder Smith</td><td>5</td><td>12</td></tr>
  <tr><td>D01</td><td>Elder Jones</td><td>5</td><td>12</td></tr>
  <tr><td>D02</td><td>Hermana Diaz</td><td>3</td><td>7</td></tr>
</table>
</body></html>
`

const noiseTableHTML = `
<table><tr><td>Firma</td><td>Departamento</td></tr><tr><td>Juan</td><td>TI</td></tr></table>
`

func TestExtractHeadersAndRowsZip(t *testing.T) {
	parsed, errs := Extract(sampleTableHTML, nil)
	if parsed == nil {
		t.Fatalf("Extract returned nil table, errs=%v", errs)
	}
	headerSet := make(map[string]bool, len(parsed.Headers))
	for _, h := range parsed.Headers {
		headerSet[h] = true
	}
	for _, row := range parsed.Rows {
		if len(row) != len(headerSet) {
			t.Fatalf("row key count %d != header count %d", len(row), len(headerSet))
		}
		for k := range row {
			if !headerSet[k] {
				t.Fatalf("row key %q absent from headers %v", k, parsed.Headers)
			}
		}
	}
	if len(parsed.Rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d", len(parsed.Rows))
	}
}

func TestExtractPicksHighestScoringTable(t *testing.T) {
	combined := noiseTableHTML + sampleTableHTML
	parsed, _ := Extract(combined, nil)
	if parsed == nil {
		t.Fatal("expected a table to be selected")
	}
	found := false
	for _, h := range parsed.Headers {
		if h == "Distrito" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the roster table to win scoring, got headers %v", parsed.Headers)
	}
}

func TestExtractEmptyBodyReportsHTMLMissing(t *testing.T) {
	_, errs := Extract("", nil)
	if len(errs) != 1 || errs[0] != resultmodel.ErrHTMLMissing {
		t.Fatalf("expected %q, got %v", resultmodel.ErrHTMLMissing, errs)
	}
}

func TestExtractRowOverflow(t *testing.T) {
	html := `<table>
		<tr><th>A</th><th>B</th></tr>
		<tr><td>1</td><td>2</td><td>3</td></tr>
	</table>`
	parsed, errs := Extract(html, nil)
	if parsed == nil {
		t.Fatalf("expected parsed table, errs=%v", errs)
	}
	wantCode := resultmodel.ErrRowOverflowPrefix + "0"
	found := false
	for _, e := range errs {
		if e == wantCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among errs, got %v", wantCode, errs)
	}
}

func TestExtractRequiredColumnMissingFromHeaders(t *testing.T) {
	_, errs := Extract(sampleTableHTML, []string{"Distrito", "Zona"})
	wantCode := resultmodel.ErrColumnMissingPrefix + "Zona"
	found := false
	for _, e := range errs {
		if e == wantCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among errs, got %v", wantCode, errs)
	}
}

const zonaTableHTML = `
<table>
  <tr><th>Distrito</th><th>Zona</th><th>Nombre</th></tr>
  <tr><td>D01</td><td></td><td>Elder Smith</td></tr>
  <tr><td>D02</td><td>Norte</td><td>Hermana Diaz</td></tr>
</table>
`

func TestExtractRequiredValueMissingFromRow(t *testing.T) {
	_, errs := Extract(zonaTableHTML, []string{"Distrito", "Zona"})
	wantCode := resultmodel.ErrValueMissingPrefix + "Zona:0"
	found := false
	for _, e := range errs {
		if e == wantCode {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among errs, got %v", wantCode, errs)
	}
}

func TestExtractGenerationDateFromBody(t *testing.T) {
	body := "Estimados, la Generación del 10 de enero de 2025 ya fue asignada."
	got, ok := ExtractGenerationDate(body, "", nil, "")
	if !ok || got != "20250110" {
		t.Fatalf("ExtractGenerationDate = %q, %v; want 20250110", got, ok)
	}
}

func TestExtractGenerationDateFallsBackThroughSources(t *testing.T) {
	htmlBody := "<html><body><p>Sin fecha en texto plano.</p></body></html>"
	extra := []string{"nota administrativa", "Ref: generación del 3 de marzo de 2025"}
	subject := "Reporte semanal"
	got, ok := ExtractGenerationDate("sin nada util", htmlBody, extra, subject)
	if !ok || got != "20250303" {
		t.Fatalf("ExtractGenerationDate fallback = %q, %v; want 20250303", got, ok)
	}
}

func TestExtractGenerationDateFallsBackToSubject(t *testing.T) {
	got, ok := ExtractGenerationDate("", "", nil, "Resumen del 5 de mayo de 2025")
	if !ok || got != "20250505" {
		t.Fatalf("ExtractGenerationDate subject fallback = %q, %v; want 20250505", got, ok)
	}
}

func TestExtractGenerationDateNoneFound(t *testing.T) {
	_, ok := ExtractGenerationDate("nada", "", nil, "tampoco")
	if ok {
		t.Fatal("expected no generation date to be found")
	}
}

func TestNormalizeTextFoldsAccents(t *testing.T) {
	if normalizeText("Generación") != normalizeText("generacion") {
		t.Fatalf("expected accent folding to equate the two forms")
	}
}
