package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jfyne/csvd"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited reads comma, semicolon, tab or pipe separated text.
// The delimiter is sniffed from the content. Blank lines, which the CSV
// reader skips, come back as empty rows so row positions match the file.
func readDelimited(data []byte) ([][]any, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csvd.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var grid [][]any
	nextLine := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read delimited text: %w", err)
		}

		line, _ := reader.FieldPos(0)
		for ; nextLine < line; nextLine++ {
			grid = append(grid, nil)
		}
		// quoted cells may span lines
		lastLine, _ := reader.FieldPos(len(record) - 1)
		nextLine = lastLine + strings.Count(record[len(record)-1], "\n") + 1

		row := make([]any, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		grid = append(grid, row)
	}
	return grid, nil
}
