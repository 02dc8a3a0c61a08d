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

// Package htmltable extracts the primary CCM data table from an email
// body, validates it against a configured set of required columns, and
// derives the generation date from mixed text/HTML content.
//
// Grounded on original_source's email_html_parser.py
// (extract_primary_table, _parse_table_element, _score_table) and
// email_content_utils.py (the generation-date fallback cascade: plain
// body, HTML-stripped body, extra_texts, then the subject line).
package htmltable

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/JPMarichal/ccmwf/internal/resultmodel"
)

// ParsedTable mirrors SPEC_FULL.md §3: ordered unique headers, ordered
// rows keyed by every header, and any text captured before the header
// row.
type ParsedTable struct {
	Headers    []string
	Rows       []map[string]string
	ExtraTexts []string
}

// Extract locates the highest-scoring <table> in htmlBody, parses it into
// a ParsedTable, and validates it against requiredColumns: a required
// header absent from the table reports column_missing:<col>, and a
// required column's empty cell in a data row reports
// value_missing:<col>:<row>. When htmlBody is empty, returns html_missing.
// When no table yields a valid header row, every requiredColumns entry is
// reported missing, since there is no header to check it against.
//
// Grounded on original_source's email_html_parser.py
// (extract_primary_table) validating against config.py's
// email_table_required_columns.
func Extract(htmlBody string, requiredColumns []string) (*ParsedTable, []string) {
	if strings.TrimSpace(htmlBody) == "" {
		return nil, []string{resultmodel.ErrHTMLMissing}
	}

	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil, []string{resultmodel.ErrHTMLMissing}
	}

	tables := findTables(doc)
	if len(tables) == 0 {
		return nil, missingColumnErrors(requiredColumns)
	}

	var best *ParsedTable
	var bestErrors []string
	bestScore := -1.0
	var fallbackErrors []string

	for _, tbl := range tables {
		parsed, errs := parseTableElement(tbl, requiredColumns)
		if parsed == nil {
			fallbackErrors = append(fallbackErrors, errs...)
			continue
		}
		score := scoreTable(parsed)
		if best == nil || score > bestScore {
			best, bestErrors, bestScore = parsed, errs, score
		}
	}

	if best != nil {
		return best, bestErrors
	}
	if len(fallbackErrors) == 0 {
		fallbackErrors = missingColumnErrors(requiredColumns)
	}
	return nil, dedupe(fallbackErrors)
}

func findTables(n *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return tables
}

func parseTableElement(table *html.Node, requiredColumns []string) (*ParsedTable, []string) {
	var headers []string
	var rows [][]string
	var extraTexts []string
	headerFound := false

	for _, row := range findRows(table) {
		cells, isHeaderRow := findCells(row)
		if len(cells) == 0 {
			continue
		}

		texts := make([]string, len(cells))
		nonEmpty := 0
		for i, c := range cells {
			texts[i] = textContent(c)
			if strings.TrimSpace(texts[i]) != "" {
				nonEmpty++
			}
		}

		if !headerFound {
			if isHeaderRow || nonEmpty > 1 {
				var candidate []string
				for _, t := range texts {
					if strings.TrimSpace(t) != "" {
						candidate = append(candidate, strings.TrimSpace(t))
					}
				}
				if len(candidate) > 0 {
					headers = disambiguateHeaders(candidate)
					headerFound = true
					continue
				}
			}
			if nonEmpty > 0 {
				for _, t := range texts {
					if strings.TrimSpace(t) != "" {
						extraTexts = append(extraTexts, strings.TrimSpace(t))
					}
				}
			}
			continue
		}

		if nonEmpty == 0 || nonEmpty <= 1 {
			// Blank row, or a single-cell separator row (e.g. "6 SEMANAS").
			continue
		}
		rows = append(rows, texts)
	}

	if len(headers) == 0 {
		return nil, missingColumnErrors(requiredColumns)
	}

	errs := missingHeaderErrors(headers, requiredColumns)

	var normalizedRows []map[string]string
	headerCount := len(headers)
	for idx, row := range rows {
		if allBlank(row) {
			continue
		}
		if len(row) > headerCount {
			errs = append(errs, resultmodel.ErrRowOverflowPrefix+strconv.Itoa(idx))
			row = row[:headerCount]
		}
		padded := make([]string, headerCount)
		copy(padded, row)
		rowMap := make(map[string]string, headerCount)
		for i, h := range headers {
			rowMap[h] = padded[i]
		}
		if rowResemblesHeaders(rowMap, headers) {
			continue
		}
		normalizedRows = append(normalizedRows, rowMap)
		errs = append(errs, missingValueErrors(rowMap, headers, requiredColumns, idx)...)
	}

	return &ParsedTable{Headers: headers, Rows: normalizedRows, ExtraTexts: extraTexts}, errs
}

// missingColumnErrors reports column_missing:<col> for every required
// column, used when no table (or no header row) was found to check
// requiredColumns against.
func missingColumnErrors(requiredColumns []string) []string {
	var errs []string
	for _, col := range requiredColumns {
		errs = append(errs, resultmodel.ErrColumnMissingPrefix+col)
	}
	return errs
}

// missingHeaderErrors reports column_missing:<col> for every required
// column absent from headers, matched case/accent-insensitively.
func missingHeaderErrors(headers, requiredColumns []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[normalizeText(h)] = true
	}
	var errs []string
	for _, col := range requiredColumns {
		if !present[normalizeText(col)] {
			errs = append(errs, resultmodel.ErrColumnMissingPrefix+col)
		}
	}
	return errs
}

// missingValueErrors reports value_missing:<col>:<row> for every required
// column whose cell is empty in this data row. A required column already
// reported via missingHeaderErrors is skipped here, since it has no
// matching header to read a value from.
func missingValueErrors(rowMap map[string]string, headers, requiredColumns []string, rowIdx int) []string {
	var errs []string
	for _, col := range requiredColumns {
		header := matchingHeader(headers, col)
		if header == "" {
			continue
		}
		if strings.TrimSpace(rowMap[header]) == "" {
			errs = append(errs, resultmodel.ErrValueMissingPrefix+col+":"+strconv.Itoa(rowIdx))
		}
	}
	return errs
}

// matchingHeader returns the header matching col case/accent-insensitively,
// or "" if requiredColumns names a column absent from headers.
func matchingHeader(headers []string, col string) string {
	target := normalizeText(col)
	for _, h := range headers {
		if normalizeText(h) == target {
			return h
		}
	}
	return ""
}

func findRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func findCells(row *html.Node) (cells []*html.Node, hasTh bool) {
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, c)
			if c.Data == "th" {
				hasTh = true
			}
		}
	}
	return cells, hasTh
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(collapseWhitespace(sb.String()))
}

func disambiguateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		trimmed := collapseWhitespace(strings.TrimSpace(h))
		seen[trimmed]++
		if seen[trimmed] == 1 {
			out[i] = trimmed
		} else {
			out[i] = trimmed + " (" + strconv.Itoa(seen[trimmed]) + ")"
		}
	}
	return out
}

func allBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func rowResemblesHeaders(row map[string]string, headers []string) bool {
	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[normalizeText(h)] = true
	}
	any := false
	for _, v := range row {
		if strings.TrimSpace(v) == "" {
			continue
		}
		any = true
		if !headerSet[normalizeText(v)] {
			return false
		}
	}
	return any
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
