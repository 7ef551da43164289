// Package tabular turns decoded CSV text into an ordered sequence of
// header-keyed rows. The reader is deliberately lenient: one malformed line
// must never abort a whole brokerage export.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradefolio/backend/src/models"
)

// Parse reads decoded text and returns the data rows keyed by the first
// non-empty line's headers, plus human-readable issue strings for lines the
// reader had to repair.
//
// Leniency policy: quoting errors are tolerated (LazyQuotes), rows shorter
// than the header are padded with empty cells, rows longer than the header
// are truncated, and rows whose cells are all blank are dropped. Repairs are
// reported as issues rather than swallowed, so callers can merge them into
// the same warnings surface as semantic row rejections.
func Parse(text string) ([]models.Row, []string) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var headers []string
	var rows []models.Row
	var issues []string

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			issues = append(issues, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if allBlank(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, h := range record {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}

		if len(record) != len(headers) {
			issues = append(issues, fmt.Sprintf("line %d: %d cells for %d headers", line, len(record), len(headers)))
		}
		row := make(models.Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, issues
}

// Headers returns the header row of decoded text, in file order.
func Headers(text string) []string {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	for {
		record, err := reader.Read()
		if err != nil {
			return nil
		}
		if allBlank(record) {
			continue
		}
		headers := make([]string, len(record))
		for i, h := range record {
			headers[i] = strings.TrimSpace(h)
		}
		return headers
	}
}

func allBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
