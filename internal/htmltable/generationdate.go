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
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/JPMarichal/ccmwf/internal/normalize"
)

// monthAliases maps accent-folded Spanish month names to their number.
var monthAliases = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
}

// generacionPattern matches "generacion(...) del DD de MES de YYYY" once
// the candidate text has been accent-folded and lowercased. The "de/del"
// connector and the word "generacion" itself are optional so the same
// pattern also matches a bare "10 de enero de 2025" phrase found outside
// the generation-statement sentence.
var generacionPattern = regexp.MustCompile(`(\d{1,2})\s+de\s+([a-z]+)\s+de\s+(\d{4})`)

// ExtractGenerationDate derives the YYYYMMDD generation date by trying, in
// order: the plain-text body, the HTML body with markup stripped, each
// extra_texts entry in order, and finally the subject line. The first
// source that yields a parseable "DD de MES de YYYY" phrase wins.
//
// Grounded on original_source's email_content_utils.py
// extract_fecha_generacion.
func ExtractGenerationDate(plainBody, htmlBody string, extraTexts []string, subject string) (string, bool) {
	sources := make([]string, 0, len(extraTexts)+3)
	sources = append(sources, plainBody, stripTags(htmlBody))
	sources = append(sources, extraTexts...)
	sources = append(sources, subject)

	for _, s := range sources {
		if date, ok := parseGenerationPhrase(s); ok {
			return date, true
		}
	}
	return "", false
}

func parseGenerationPhrase(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	folded := normalizeText(text)
	m := generacionPattern.FindStringSubmatch(folded)
	if m == nil {
		return "", false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	month, ok := monthAliases[m[2]]
	if !ok {
		return "", false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}
	date := normalize.FormatGenerationDate(year, month, day)
	if !normalize.GenerationDateForm(date) {
		return "", false
	}
	return date, true
}

// normalizeText folds diacritics via NFKD decomposition, strips combining
// marks, lowercases, and collapses whitespace, so that "Generación" and
// "generacion" compare equal.
func normalizeText(s string) string {
	decomposed := norm.NFKD.String(s)
	var sb strings.Builder
	sb.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return collapseWhitespace(sb.String())
}

// stripTags renders an HTML fragment down to its visible text, used as
// the second fallback source for generation-date extraction.
func stripTags(htmlBody string) string {
	if strings.TrimSpace(htmlBody) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
