package extractor

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// readSpreadsheet returns the cells of the first non-empty worksheet.
// Numeric cells keep their raw value so date serials reach the date parser
// untouched; cells stored as ISO dates become time.Time.
func readSpreadsheet(data []byte) ([][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to open spreadsheet: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("unable to read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		grid := make([][]any, len(rows))
		for r, cells := range rows {
			row := make([]any, len(cells))
			for c, value := range cells {
				row[c] = spreadsheetCell(f, sheet, c+1, r+1, value)
			}
			grid[r] = row
		}
		return grid, nil
	}
	return nil, nil
}

func spreadsheetCell(f *excelize.File, sheet string, col, row int, value string) any {
	if value == "" {
		return value
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return value
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil || typ != excelize.CellTypeDate {
		return value
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return value
}
