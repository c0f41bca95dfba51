package reconcile

import (
	"errors"
	"testing"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

func pkg(tracking, date string) models.ActivityPackage {
	p := models.ActivityPackage{TrackingNumber: tracking}
	if date != "" {
		p.Date = models.MustDate(date)
	}
	return p
}

func TestDecide(t *testing.T) {
	orderRow := models.UploadRow{
		SourceMode:   models.ModePO,
		OrderNumber:  "PO-200",
		PartyName:    "Acme Corp",
		AssertedDate: models.MustDate("2024-02-01"),
		RowIndex:     1,
	}
	undated := orderRow
	undated.AssertedDate = models.Date{}

	tests := []struct {
		name        string
		row         models.UploadRow
		ev          Evidence
		wantVerdict models.Verdict
		wantDelta   models.DayDelta
		wantActual  string
	}{
		{
			name:        "lookup failure is an error, not a miss",
			row:         orderRow,
			ev:          Evidence{LookupErr: errors.New("401 unauthorized")},
			wantVerdict: models.VerdictError,
		},
		{
			name:        "unknown order",
			row:         orderRow,
			ev:          Evidence{},
			wantVerdict: models.VerdictNotFound,
		},
		{
			name:        "date two days late",
			row:         orderRow,
			ev:          Evidence{Exists: true, TruthParty: "Acme Corp", Packages: []models.ActivityPackage{pkg("T1", "2024-02-03")}},
			wantVerdict: models.VerdictMismatch,
			wantDelta:   models.Delta(2),
			wantActual:  "2024-02-03",
		},
		{
			name:        "date one day early is within tolerance",
			row:         orderRow,
			ev:          Evidence{Exists: true, TruthParty: "ACME CORP.", Packages: []models.ActivityPackage{pkg("T1", "2024-01-31")}},
			wantVerdict: models.VerdictOK,
			wantDelta:   models.Delta(-1),
			wantActual:  "2024-01-31",
		},
		{
			name: "closest package wins",
			row:  orderRow,
			ev: Evidence{Exists: true, Packages: []models.ActivityPackage{
				pkg("T1", "2024-03-01"), pkg("T2", "2024-02-01"), pkg("T3", ""),
			}},
			wantVerdict: models.VerdictOK,
			wantDelta:   models.Delta(0),
			wantActual:  "2024-02-01",
		},
		{
			name: "equidistant packages prefer the earlier one",
			row:  orderRow,
			ev: Evidence{Exists: true, Packages: []models.ActivityPackage{
				pkg("T1", "2024-02-06"), pkg("T2", "2024-01-27"),
			}},
			wantVerdict: models.VerdictMismatch,
			wantDelta:   models.Delta(-5),
			wantActual:  "2024-01-27",
		},
		{
			name:        "party disagrees",
			row:         orderRow,
			ev:          Evidence{Exists: true, TruthParty: "Globex Industries", Packages: []models.ActivityPackage{pkg("T1", "2024-02-01")}},
			wantVerdict: models.VerdictMismatch,
			wantDelta:   models.Delta(0),
			wantActual:  "2024-02-01",
		},
		{
			name:        "no activity with agreeing party",
			row:         orderRow,
			ev:          Evidence{Exists: true, TruthParty: "Acme Corp"},
			wantVerdict: models.VerdictOK,
		},
		{
			name:        "no activity with disagreeing party",
			row:         orderRow,
			ev:          Evidence{Exists: true, TruthParty: "Globex"},
			wantVerdict: models.VerdictMismatch,
		},
		{
			name:        "no asserted date reports actual without delta",
			row:         undated,
			ev:          Evidence{Exists: true, Packages: []models.ActivityPackage{pkg("T1", "2024-02-09"), pkg("T2", "2024-02-03")}},
			wantVerdict: models.VerdictOK,
			wantActual:  "2024-02-03",
		},
		{
			name:        "tracking search never compares party",
			row:         models.UploadRow{TrackingNumber: "1Z1", PartyName: "Someone Else", AssertedDate: models.MustDate("2024-02-01")},
			ev:          Evidence{ByTracking: true, Exists: true, TruthParty: "Acme", Packages: []models.ActivityPackage{pkg("1Z1", "2024-02-02")}},
			wantVerdict: models.VerdictOK,
			wantDelta:   models.Delta(1),
			wantActual:  "2024-02-02",
		},
	}

	policy := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(tt.row, tt.ev)
			if d.Verdict != tt.wantVerdict {
				t.Errorf("verdict: got %s, want %s (%s)", d.Verdict, tt.wantVerdict, d.Reason)
			}
			if d.DayDelta != tt.wantDelta {
				t.Errorf("dayDelta: got %+v, want %+v", d.DayDelta, tt.wantDelta)
			}
			if d.ActualDate.String() != tt.wantActual {
				t.Errorf("actual date: got %q, want %q", d.ActualDate, tt.wantActual)
			}
			if d.Reason == "" {
				t.Error("reason should never be empty")
			}
		})
	}
}

func TestDecide_PrefersPackageWithRowTracking(t *testing.T) {
	row := models.UploadRow{OrderNumber: "SO-1", TrackingNumber: "1ZB", AssertedDate: models.MustDate("2024-05-01")}
	ev := Evidence{Exists: true, Packages: []models.ActivityPackage{pkg("1ZA", "2024-05-01"), pkg("1ZB", "2024-05-04")}}

	d := DefaultPolicy().Decide(row, ev)
	if d.ActualDate.String() != "2024-05-04" || d.Verdict != models.VerdictMismatch {
		t.Errorf("got %s %s, want the 1ZB package and MISMATCH", d.ActualDate, d.Verdict)
	}
}

func TestPartiesAgree(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Acme Corp", "ACME CORP.", true},
		{"Acme", "Acme Corporation", true},
		{"Acme Corporation", "Acme Corporatoin", true},
		{"Acme Corp", "Globex", false},
		{"", "Globex", true},
		{"Northwind", "Southwind", false},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		if got := p.PartiesAgree(tt.a, tt.b); got != tt.want {
			t.Errorf("PartiesAgree(%q, %q): got %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
