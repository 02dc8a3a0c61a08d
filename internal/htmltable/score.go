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
	"strconv"
	"strings"
)

// keywordHeaders are the column names expected of the primary CCM roster
// table. Matched case/accent-insensitively against parsed headers.
//
// Grounded on original_source's email_html_parser.py _score_table.
var keywordHeaders = []string{
	"distrito", "nombre", "rama", "mision", "fecha", "generacion",
	"id", "companerismo", "llegada", "salida",
}

// scoreTable implements the multi-table disambiguation heuristic: keyword
// matches weigh heaviest, row count contributes up to 50, a mostly-numeric
// column set is a mild positive signal, and a header mentioning
// "generacion" is a strong positive signal. Tables with fewer than two
// keyword matches are penalized so that unrelated tables (e.g. an email
// signature layout table) rank below a genuine roster table even when
// they happen to have more rows.
func scoreTable(t *ParsedTable) float64 {
	if t == nil {
		return -1
	}

	keywordMatches := 0
	mentionsGeneracion := false
	for _, h := range t.Headers {
		normalized := normalizeText(h)
		for _, kw := range keywordHeaders {
			if strings.Contains(normalized, kw) {
				keywordMatches++
				break
			}
		}
		if strings.Contains(normalized, "generacion") {
			mentionsGeneracion = true
		}
	}

	score := float64(keywordMatches) * 10

	rows := len(t.Rows)
	if rows > 50 {
		rows = 50
	}
	score += float64(rows)

	if isMostlyNumeric(t) {
		score += 5
	}
	if mentionsGeneracion {
		score += 3
	}
	if keywordMatches < 2 {
		score -= 5
	}

	return score
}

// isMostlyNumeric reports whether at least 60% of columns are numeric in
// at least half their non-empty cells.
func isMostlyNumeric(t *ParsedTable) bool {
	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return false
	}
	numericColumns := 0
	for _, h := range t.Headers {
		numeric, nonEmpty := 0, 0
		for _, row := range t.Rows {
			v := row[h]
			if v == "" {
				continue
			}
			nonEmpty++
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				numeric++
			}
		}
		if nonEmpty > 0 && float64(numeric)/float64(nonEmpty) >= 0.5 {
			numericColumns++
		}
	}
	return float64(numericColumns)/float64(len(t.Headers)) >= 0.6
}
