package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// Columns are the result fields in wire order, named by their JSON keys.
var Columns = []string{
	"row", "trackingKey", "sourceFile", "sourceLabel", "sourceMode", "chosenMode",
	"orderNumber", "partyUpload", "partyTruth", "trackingUpload",
	"assertedDate", "actualDate", "verdict", "reason", "dayDelta",
	"poVerdict", "poReason", "soVerdict", "soReason",
}

// record flattens a result into Columns order.
func record(r models.ReconciliationResult) []string {
	row := ""
	if r.Row > 0 {
		row = strconv.Itoa(r.Row)
	}
	return []string{
		row,
		r.TrackingKey,
		r.SourceFile,
		r.SourceLabel,
		string(r.SourceMode),
		string(r.ChosenMode),
		r.OrderNumber,
		r.PartyUpload,
		r.PartyTruth,
		r.TrackingUpload,
		r.AssertedDate.String(),
		r.ActualDate.String(),
		r.Verdict.String(),
		r.Reason,
		r.DayDelta.String(),
		r.POVerdict.String(),
		r.POReason,
		r.SOVerdict.String(),
		r.SOReason,
	}
}

// CSVWriter writes reconciliation reports to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the report to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, report *models.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, report)
}

// Write writes the report details in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, report *models.Report) error {
	writer := csv.NewWriter(out)

	// Request metadata as comment rows
	if w.IncludeHeader {
		writer.Write([]string{"# Request ID", report.RequestID})
		writer.Write([]string{"# Strategy", string(report.Strategy)})
		for _, line := range summaryLines(report.Summary) {
			writer.Write([]string{"# " + line[0], line[1]})
		}
	}

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range report.Details {
		if err := writer.Write(record(r)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// summaryLines lists the summary in verdict display order, skipping verdicts
// that are absent from the counts.
func summaryLines(s models.Summary) [][2]string {
	var out [][2]string
	for _, v := range models.AllVerdicts {
		if n, ok := s.Counts[v]; ok {
			out = append(out, [2]string{v.String(), strconv.Itoa(n)})
		}
	}
	out = append(out, [2]string{"totalRowsReturned", strconv.Itoa(s.TotalRowsReturned)})
	return out
}
