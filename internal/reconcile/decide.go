package reconcile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// Policy holds the tolerances of the decision function.
type Policy struct {
	// DateToleranceDays is the largest |actual - asserted| still accepted.
	DateToleranceDays int
	// PartyDriftPercent is the edit distance allowed between two party
	// names, as a percentage of the longer name.
	PartyDriftPercent int
}

// DefaultPolicy accepts one day of date drift and 20% party-name drift.
func DefaultPolicy() Policy {
	return Policy{DateToleranceDays: 1, PartyDriftPercent: 20}
}

// Evidence is what the truth source said about one row under one interpretation.
type Evidence struct {
	// LookupErr is set when the lookup itself failed.
	LookupErr error
	// ByTracking marks a tracking-only search; packages carry no party.
	ByTracking bool
	Exists     bool
	TruthParty string
	Packages   []models.ActivityPackage
}

// Decision is the outcome of Decide.
type Decision struct {
	Verdict    models.Verdict
	Reason     string
	DayDelta   models.DayDelta
	ActualDate models.Date
	TruthParty string
}

// Decide compares an uploaded row with the truth source evidence. It does no I/O.
func (p Policy) Decide(row models.UploadRow, ev Evidence) Decision {
	subject := "order"
	if ev.ByTracking {
		subject = "tracking"
	}

	if ev.LookupErr != nil {
		return Decision{Verdict: models.VerdictError, Reason: "lookup failed: " + ev.LookupErr.Error()}
	}
	if !ev.Exists {
		return Decision{Verdict: models.VerdictNotFound, Reason: subject + " not found"}
	}

	d := Decision{TruthParty: ev.TruthParty}
	notes := []string{subject + " found"}
	mismatch := false

	if !ev.ByTracking && row.PartyName != "" && ev.TruthParty != "" {
		if p.PartiesAgree(row.PartyName, ev.TruthParty) {
			notes = append(notes, "party matches")
		} else {
			mismatch = true
			notes = append(notes, fmt.Sprintf("party differs (%q vs %q)", row.PartyName, ev.TruthParty))
		}
	}

	pkg, ok := closestPackage(row, ev.Packages)
	switch {
	case !ok:
		notes = append(notes, "no shipment activity")
	case row.AssertedDate.IsZero():
		d.ActualDate = pkg.Date
		notes = append(notes, "no asserted date to compare")
	default:
		d.ActualDate = pkg.Date
		delta := models.DaysBetween(row.AssertedDate, pkg.Date)
		d.DayDelta = models.Delta(delta)
		if abs(delta) <= p.DateToleranceDays {
			notes = append(notes, "date within tolerance")
		} else {
			mismatch = true
			notes = append(notes, fmt.Sprintf("date off by %d days", delta))
		}
	}

	d.Verdict = models.VerdictOK
	if mismatch {
		d.Verdict = models.VerdictMismatch
	}
	d.Reason = strings.Join(notes, "; ")
	return d
}

// closestPackage picks the dated package nearest to the asserted date.
// Packages carrying the row's own tracking number are preferred. Without an
// asserted date the earliest package is returned. Ties keep the earlier date.
func closestPackage(row models.UploadRow, pkgs []models.ActivityPackage) (models.ActivityPackage, bool) {
	var candidates []models.ActivityPackage
	if row.TrackingNumber != "" {
		for _, p := range pkgs {
			if !p.Date.IsZero() && p.TrackingNumber == row.TrackingNumber {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		for _, p := range pkgs {
			if !p.Date.IsZero() {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return models.ActivityPackage{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if row.AssertedDate.IsZero() {
			if c.Date.Before(best.Date.Time) {
				best = c
			}
			continue
		}
		dc := abs(models.DaysBetween(row.AssertedDate, c.Date))
		db := abs(models.DaysBetween(row.AssertedDate, best.Date))
		if dc < db || (dc == db && c.Date.Before(best.Date.Time)) {
			best = c
		}
	}
	return best, true
}

// PartiesAgree compares two party names ignoring case and punctuation.
// Names agree when equal, when one contains the other, or when their edit
// distance is within PartyDriftPercent of the longer name. A blank name
// cannot disagree.
func (p Policy) PartiesAgree(a, b string) bool {
	na, nb := normalizeParty(a), normalizeParty(b)
	if na == "" || nb == "" {
		return true
	}
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	ra, rb := []rune(na), []rune(nb)
	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptionsWithSub)
	longer := max(len(ra), len(rb))
	return distance*100 <= p.PartyDriftPercent*longer
}

func normalizeParty(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
