package reconcile

import (
	"fmt"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// precedence of a source in the cross-file merge; lower wins.
func precedence(mode models.SourceMode) int {
	switch mode {
	case models.ModePO:
		return 0
	case models.ModeShipDocs, models.ModeSO:
		return 1
	default:
		return 2
	}
}

var precedenceVerdicts = [...]models.Verdict{
	models.VerdictMatchPO,
	models.VerdictMatchShipDocs,
	models.VerdictUnmatchedUPS,
}

// trackingGroup is every row sharing one normalized tracking number.
type trackingGroup struct {
	key  string
	rows []models.UploadRow
}

// groupByTracking buckets rows by tracking number, keeping the order in which
// each key first appears. Rows without a tracking number are left out.
func groupByTracking(rows []models.UploadRow) []trackingGroup {
	index := make(map[string]int)
	var groups []trackingGroup
	for _, r := range rows {
		if r.TrackingNumber == "" {
			continue
		}
		i, ok := index[r.TrackingNumber]
		if !ok {
			i = len(groups)
			index[r.TrackingNumber] = i
			groups = append(groups, trackingGroup{key: r.TrackingNumber})
		}
		groups[i].rows = append(groups[i].rows, r)
	}
	return groups
}

// Merge collapses rows into one result per distinct tracking number.
//
// A group resolves to MATCH_PO when any PO row carries the number, else to
// MATCH_SHIPDOCS when a ShipDocs or SO row does, else to UNMATCHED_UPS.
// Among rows of the winning source the one with the lexicographically
// smallest date string is the representative, so an undated row wins over a
// dated one.
func Merge(rows []models.UploadRow) []models.ReconciliationResult {
	groups := groupByTracking(rows)
	results := make([]models.ReconciliationResult, len(groups))
	for i, g := range groups {
		results[i] = resolveGroup(g)
	}
	return results
}

func resolveGroup(g trackingGroup) (res models.ReconciliationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ReconciliationResult{
				TrackingKey:    g.key,
				TrackingUpload: g.key,
				Verdict:        models.VerdictError,
				Reason:         fmt.Sprint(r),
			}
		}
	}()

	winner := g.rows[0]
	for _, r := range g.rows[1:] {
		pr, pw := precedence(r.SourceMode), precedence(winner.SourceMode)
		if pr < pw || (pr == pw && r.AssertedDate.String() < winner.AssertedDate.String()) {
			winner = r
		}
	}

	level := precedence(winner.SourceMode)
	res = models.ReconciliationResult{
		Row:            winner.RowIndex,
		TrackingKey:    g.key,
		SourceFile:     winner.SourceFile,
		SourceLabel:    sourceLabel(winner.SourceMode),
		SourceMode:     winner.SourceMode,
		ChosenMode:     winner.SourceMode,
		OrderNumber:    winner.OrderNumber,
		PartyUpload:    winner.PartyName,
		TrackingUpload: g.key,
		AssertedDate:   winner.AssertedDate,
		Verdict:        precedenceVerdicts[level],
	}

	switch res.Verdict {
	case models.VerdictMatchPO:
		res.Reason = "tracking listed on a purchase order"
	case models.VerdictMatchShipDocs:
		res.Reason = "tracking listed on a shipping document"
	default:
		res.Reason = "tracking only seen in the carrier feed"
	}
	if len(g.rows) > 1 {
		res.Reason += fmt.Sprintf(" (%d rows)", len(g.rows))
	}

	if res.AssertedDate.IsZero() {
		if d, from, ok := borrowDate(g.rows, level); ok {
			res.AssertedDate = d
			res.Reason += "; date from " + sourceLabel(from)
		}
	}
	return res
}

// borrowDate finds the earliest date among lower-precedence rows, looking at
// the carrier feed first and shipping documents second. Display only.
func borrowDate(rows []models.UploadRow, level int) (models.Date, models.SourceMode, bool) {
	for _, lvl := range []int{2, 1} {
		if lvl <= level {
			continue
		}
		var best models.UploadRow
		found := false
		for _, r := range rows {
			if precedence(r.SourceMode) != lvl || r.AssertedDate.IsZero() {
				continue
			}
			if !found || r.AssertedDate.Before(best.AssertedDate.Time) {
				best, found = r, true
			}
		}
		if found {
			return best.AssertedDate, best.SourceMode, true
		}
	}
	return models.Date{}, "", false
}

func sourceLabel(mode models.SourceMode) string {
	switch mode {
	case models.ModePO:
		return "Purchase Orders"
	case models.ModeSO:
		return "Sales Orders"
	case models.ModeShipDocs:
		return "Ship Docs"
	case models.ModeUPS:
		return "UPS"
	default:
		return string(mode)
	}
}
