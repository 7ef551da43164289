// Package decoder turns a caller-supplied RawFile into decoded UTF-8 text:
// CSV bytes pass through with the byte-order mark stripped, spreadsheet
// binaries are flattened to CSV via their first sheet.
package decoder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/username/tradefolio/backend/src/models"
)

// ErrUnsupportedFormat is returned for files whose MIME type and extension
// indicate neither CSV nor a supported spreadsheet binary.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var csvMIMEs = map[string]bool{
	"text/csv":        true,
	"application/csv": true,
	"text/plain":      true,
}

var spreadsheetMIMEs = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel.sheet.macroenabled.12":                    true,
}

// Decode produces decoded UTF-8 text for a raw file. Pure function of its
// input; no side effects.
func Decode(file models.RawFile) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(strings.Split(file.MIME, ";")[0]))
	ext := strings.ToLower(filepath.Ext(file.Name))

	switch {
	case spreadsheetMIMEs[mime] || ext == ".xlsx" || ext == ".xlsm":
		return decodeSpreadsheet(file.Data)
	// Older Excel installs declare CSVs as vnd.ms-excel; trust the extension.
	case csvMIMEs[mime] || ext == ".csv" || (mime == "application/vnd.ms-excel" && ext != ".xls"):
		return stripBOM(string(file.Data)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, file.MIME)
}

// decodeSpreadsheet serializes the first sheet of a spreadsheet binary to
// CSV text: comma field separator, newline row separator, cells trimmed.
func decodeSpreadsheet(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	for _, row := range rows {
		for i, cell := range row {
			row[i] = strings.TrimSpace(cell)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("serializing sheet row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("serializing sheet: %w", err)
	}
	return stripBOM(sb.String()), nil
}

func stripBOM(text string) string {
	return strings.TrimPrefix(text, "\uFEFF")
}
