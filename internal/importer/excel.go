package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReadWorkbook turns the first sheet of an inventory workbook into records.
// Header cells become record keys, so column names go through the same
// alias table as JSON fields.
func ReadWorkbook(reader io.Reader) ([]Record, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, workbookError("no se pudo abrir el archivo: " + err.Error())
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, workbookError("el archivo no tiene hojas")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("importer: read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, workbookError("el archivo esta vacio")
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = normalizeHeader(col)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		rec := Record{}
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value := cleanCell(cell)
			if value == "" {
				continue
			}
			if _, exists := rec[header[i]]; !exists {
				rec[header[i]] = value
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.Join(strings.Fields(value), "_")
	return value
}

// cleanCell drops thousands separators from numeric cells.
func cleanCell(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.Contains(value, ",") {
		stripped := strings.ReplaceAll(value, ",", "")
		if _, err := decimal.NewFromString(stripped); err == nil {
			return stripped
		}
	}
	return value
}

func workbookError(msg string) error {
	return &ValidationError{Issues: []FieldIssue{{Index: -1, Field: "archivo", Message: msg}}}
}
