package reconcile

import (
	"testing"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

func uploadRow(mode models.SourceMode, order, tracking, date string, index int) models.UploadRow {
	r := models.UploadRow{
		SourceFile:     string(mode) + ".csv",
		SourceMode:     mode,
		OrderNumber:    order,
		TrackingNumber: tracking,
		RowIndex:       index,
	}
	if date != "" {
		r.AssertedDate = models.MustDate(date)
	}
	return r
}

func TestMerge_POBeatsCarrierFeed(t *testing.T) {
	rows := []models.UploadRow{
		uploadRow(models.ModePO, "PO-100", "1Z999AA10123456784", "2024-01-05", 1),
		uploadRow(models.ModeUPS, "", "1Z999AA10123456784", "2024-01-07", 1),
	}
	results := Merge(rows)

	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	r := results[0]
	if r.Verdict != models.VerdictMatchPO {
		t.Errorf("verdict: got %s", r.Verdict)
	}
	if r.TrackingUpload != "1Z999AA10123456784" || r.OrderNumber != "PO-100" || r.AssertedDate.String() != "2024-01-05" {
		t.Errorf("display fields: %+v", r)
	}
	if r.ChosenMode != models.ModePO || r.DayDelta.Valid {
		t.Errorf("chosen mode %q, dayDelta %+v", r.ChosenMode, r.DayDelta)
	}
}

func TestMerge_CarrierOnly(t *testing.T) {
	results := Merge([]models.UploadRow{uploadRow(models.ModeUPS, "", "1ZAAA", "2024-01-07", 4)})

	if len(results) != 1 || results[0].Verdict != models.VerdictUnmatchedUPS {
		t.Fatalf("got %+v", results)
	}
	if results[0].OrderNumber != "" || results[0].Row != 4 {
		t.Errorf("got %+v", results[0])
	}
}

func TestMerge_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		modes []models.SourceMode
		want  models.Verdict
	}{
		{"po and shipdocs", []models.SourceMode{models.ModeShipDocs, models.ModePO}, models.VerdictMatchPO},
		{"po shipdocs ups", []models.SourceMode{models.ModeUPS, models.ModeShipDocs, models.ModePO}, models.VerdictMatchPO},
		{"shipdocs and ups", []models.SourceMode{models.ModeUPS, models.ModeShipDocs}, models.VerdictMatchShipDocs},
		{"sales order and ups", []models.SourceMode{models.ModeSO, models.ModeUPS}, models.VerdictMatchShipDocs},
		{"ups twice", []models.SourceMode{models.ModeUPS, models.ModeUPS}, models.VerdictUnmatchedUPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []models.UploadRow
			for i, m := range tt.modes {
				rows = append(rows, uploadRow(m, "", "1ZKEY", "2024-01-01", i+1))
			}
			results := Merge(rows)
			if len(results) != 1 {
				t.Fatalf("results: got %d, want 1", len(results))
			}
			if results[0].Verdict != tt.want {
				t.Errorf("got %s, want %s", results[0].Verdict, tt.want)
			}
		})
	}
}

func TestMerge_DedupAndOrder(t *testing.T) {
	rows := []models.UploadRow{
		uploadRow(models.ModePO, "PO-1", "1ZB", "", 1),
		uploadRow(models.ModePO, "PO-2", "", "", 2),
		uploadRow(models.ModePO, "PO-3", "1ZA", "", 3),
		uploadRow(models.ModeUPS, "", "1ZB", "", 1),
		uploadRow(models.ModeUPS, "", "1ZC", "", 2),
		uploadRow(models.ModeUPS, "", "1ZA", "", 3),
	}
	results := Merge(rows)

	want := []string{"1ZB", "1ZA", "1ZC"}
	if len(results) != len(want) {
		t.Fatalf("results: got %d, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].TrackingKey != w {
			t.Errorf("result %d: got %q, want %q", i, results[i].TrackingKey, w)
		}
	}
}

func TestMerge_EarliestDateStringTieBreak(t *testing.T) {
	rows := []models.UploadRow{
		uploadRow(models.ModePO, "PO-LATE", "1ZK", "2024-03-02", 1),
		uploadRow(models.ModePO, "PO-EARLY", "1ZK", "2024-03-01", 2),
	}
	if got := Merge(rows)[0].OrderNumber; got != "PO-EARLY" {
		t.Errorf("got %q, want PO-EARLY", got)
	}

	// An undated row sorts first.
	rows = append(rows, uploadRow(models.ModePO, "PO-UNDATED", "1ZK", "", 3))
	if got := Merge(rows)[0].OrderNumber; got != "PO-UNDATED" {
		t.Errorf("got %q, want PO-UNDATED", got)
	}
}

func TestMerge_BorrowsDisplayDate(t *testing.T) {
	rows := []models.UploadRow{
		uploadRow(models.ModePO, "PO-1", "1ZK", "", 1),
		uploadRow(models.ModeShipDocs, "SD-1", "1ZK", "2024-01-02", 1),
		uploadRow(models.ModeUPS, "", "1ZK", "2024-01-09", 1),
		uploadRow(models.ModeUPS, "", "1ZK", "2024-01-08", 2),
	}
	r := Merge(rows)[0]

	if r.Verdict != models.VerdictMatchPO || r.OrderNumber != "PO-1" {
		t.Fatalf("borrowed date must not change the winner: %+v", r)
	}
	if r.AssertedDate.String() != "2024-01-08" {
		t.Errorf("display date: got %q, want the earliest UPS date", r.AssertedDate)
	}

	// Without carrier dates the shipping document date is used.
	r = Merge(rows[:2])[0]
	if r.AssertedDate.String() != "2024-01-02" {
		t.Errorf("display date: got %q, want the ShipDocs date", r.AssertedDate)
	}
}

func TestMerge_IgnoresRowsWithoutTracking(t *testing.T) {
	rows := []models.UploadRow{uploadRow(models.ModePO, "PO-1", "", "2024-01-01", 1)}
	if results := Merge(rows); len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
