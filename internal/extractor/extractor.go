// Package extractor decodes uploaded file bytes (delimited text, spreadsheets,
// PDF shipment documents) into a header-keyed table of cells.
package extractor

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
)

// Format is the container format of an uploaded file.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
	FormatPDF         Format = "pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
)

// headerScanDepth bounds how many leading rows are considered for the header row.
const headerScanDepth = 10

// Row maps a header to a cell value. Values are string, float64 or time.Time.
type Row map[string]any

// Table is one decoded file: the detected header row and the data rows under it.
// Rows keep their file order, blank rows included, so row numbers stay stable.
type Table struct {
	Name    string
	Format  Format
	Headers []string
	Rows    []Row
}

// Detect decides the container format from the file content and its name.
func Detect(filename string, data []byte) (Format, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	kind, _ := filetype.Match(data)

	switch {
	case kind.Extension == "pdf":
		return FormatPDF, nil
	case kind.Extension == "xlsx":
		return FormatSpreadsheet, nil
	case kind.MIME.Value == "application/zip" && (ext == "xlsx" || ext == "xlsm"):
		return FormatSpreadsheet, nil
	case kind != filetype.Unknown:
		// binary container we cannot read, including legacy .xls
		return "", fmt.Errorf("%s: detected %s content: %w", filename, kind.Extension, ErrUnsupportedFormat)
	}

	switch ext {
	case "csv", "tsv", "txt", "tab":
		return FormatDelimited, nil
	case "xlsx", "xlsm", "pdf":
		return "", fmt.Errorf("%s: content does not look like .%s: %w", filename, ext, ErrUnsupportedFormat)
	}

	if strings.HasPrefix(http.DetectContentType(data), "text/") {
		return FormatDelimited, nil
	}
	return "", fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
}

// HeaderFunc reports how many canonical fields a candidate header row names.
type HeaderFunc func(cells []string) int

// Read decodes one uploaded file into a Table, picking the header row by
// filled cells alone.
func Read(filename string, data []byte) (*Table, error) {
	return ReadWithHeaders(filename, data, nil)
}

// ReadWithHeaders decodes one uploaded file into a Table. Within the first
// rows, the row naming the most fields per score becomes the header; filled
// cells break ties, then the earlier row wins. PDF text has a fixed header.
func ReadWithHeaders(filename string, data []byte, score HeaderFunc) (*Table, error) {
	format, err := Detect(filename, data)
	if err != nil {
		return nil, err
	}

	var grid [][]any
	switch format {
	case FormatDelimited:
		grid, err = readDelimited(data)
	case FormatSpreadsheet:
		grid, err = readSpreadsheet(data)
	case FormatPDF:
		grid, err = readPDF(data)
		score = nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	t := buildTable(grid, score)
	t.Name = filename
	t.Format = format
	return t, nil
}

// buildTable picks the header row and keys every later row by header name.
func buildTable(grid [][]any, score HeaderFunc) *Table {
	t := &Table{}
	if len(grid) == 0 {
		return t
	}

	headerAt := 0
	bestFields, bestCells := 0, 0
	for i, row := range grid {
		if i >= headerScanDepth {
			break
		}
		fields := 0
		if score != nil {
			fields = score(cellTexts(row))
		}
		cells := countFilled(row)
		if fields > bestFields || (fields == bestFields && cells > bestCells) {
			headerAt, bestFields, bestCells = i, fields, cells
		}
	}

	t.Headers = renameDuplicateColumns(ensureColumnsHaveNames(cellTexts(grid[headerAt])))

	for _, cells := range grid[headerAt+1:] {
		row := make(Row, len(cells))
		for j, cell := range cells {
			if j >= len(t.Headers) {
				break
			}
			row[t.Headers[j]] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cellTexts(row []any) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(CellString(cell))
	}
	return out
}

func countFilled(row []any) int {
	var n int
	for _, c := range row {
		if strings.TrimSpace(CellString(c)) != "" {
			n++
		}
	}
	return n
}

func ensureColumnsHaveNames(s []string) []string {
	result := make([]string, len(s))
	for i, item := range s {
		if item == "" {
			result[i] = "Column " + strconv.Itoa(i+1)
		} else {
			result[i] = item
		}
	}
	return result
}

func renameDuplicateColumns(s []string) []string {
	seen := make(map[string]int)
	result := make([]string, len(s))
	for i, item := range s {
		seen[item]++
		if seen[item] > 1 {
			result[i] = item + "_" + strconv.Itoa(seen[item])
		} else {
			result[i] = item
		}
	}
	return result
}

// CellString renders any cell value as text.
func CellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}
