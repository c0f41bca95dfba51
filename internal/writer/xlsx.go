package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

const (
	detailsSheet = "Details"
	summarySheet = "Summary"
)

// XLSXWriter writes reconciliation reports as an Excel workbook with a
// details sheet and a summary sheet.
type XLSXWriter struct{}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, report *models.Report) error {
	f, err := w.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}
	return nil
}

// Write streams the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, report *models.Report) error {
	f, err := w.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(report *models.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", detailsSheet); err != nil {
		f.Close()
		return nil, err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(detailsSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range report.Details {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := record(r)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		// Keep numeric columns numeric so they sort in Excel.
		if r.Row > 0 {
			row[0] = r.Row
		}
		if r.DayDelta.Valid {
			row[14] = r.DayDelta.Days
		}
		if err := f.SetSheetRow(detailsSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	f.SetCellValue(summarySheet, "A1", "requestId")
	f.SetCellValue(summarySheet, "B1", report.RequestID)
	f.SetCellValue(summarySheet, "A2", "strategy")
	f.SetCellValue(summarySheet, "B2", string(report.Strategy))
	for i, line := range summaryLines(report.Summary) {
		f.SetCellValue(summarySheet, "A"+fmt.Sprint(i+3), line[0])
		f.SetCellValue(summarySheet, "B"+fmt.Sprint(i+3), line[1])
	}
	return f, nil
}
