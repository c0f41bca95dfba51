package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfTextHeader is the single column PDF lines are placed under.
const pdfTextHeader = "Text"

// readPDF turns a shipment document into one row per text line.
// The header row is synthetic: PDF documents have no column structure
// the normalizer could map, so the tracking scanner reads the raw lines.
func readPDF(data []byte) ([][]any, error) {
	lines, err := pdfLines(data)
	if err != nil || len(lines) == 0 {
		if raw := rawPDFLines(data); len(raw) > 0 {
			lines, err = raw, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no text layer found in PDF; scanned documents are not supported")
	}

	grid := [][]any{{pdfTextHeader}}
	for _, line := range lines {
		grid = append(grid, []any{line})
	}
	return grid, nil
}

func pdfLines(data []byte) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}
