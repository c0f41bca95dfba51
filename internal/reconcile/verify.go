package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/insightdelivered/order-reconciler/internal/models"
	"github.com/insightdelivered/order-reconciler/internal/truthsource"
)

const deadlineReason = "request deadline exceeded"

// Verifier checks rows against a truth source under the PO and SO
// interpretations and keeps the strongest outcome.
type Verifier struct {
	Source truthsource.Source
	Policy Policy
	// Modes restricts the interpretations tried. Empty means the row's
	// preferred interpretation followed by the other one.
	Modes []models.SourceMode
}

// Interpretations lists the modes a row is evaluated under, preferred first.
func (v *Verifier) Interpretations(row models.UploadRow) []models.SourceMode {
	preferred, other := models.ModePO, models.ModeSO
	if row.SourceMode.IsOutbound() {
		preferred, other = models.ModeSO, models.ModePO
	}
	if len(v.Modes) == 0 {
		return []models.SourceMode{preferred, other}
	}

	allowed := make(map[models.SourceMode]bool, len(v.Modes))
	for _, m := range v.Modes {
		if m == models.ModeShipDocs {
			m = models.ModeSO
		}
		allowed[m] = true
	}
	var out []models.SourceMode
	for _, m := range []models.SourceMode{preferred, other} {
		if allowed[m] {
			out = append(out, m)
		}
	}
	return out
}

// Evaluate runs the lookups for one interpretation and decides. Failures and
// panics come back as ERROR decisions.
func (v *Verifier) Evaluate(ctx context.Context, mode models.SourceMode, row models.UploadRow) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{Verdict: models.VerdictError, Reason: fmt.Sprint(r)}
		}
	}()

	ev := v.gather(ctx, mode, row)
	if ev.LookupErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Decision{Verdict: models.VerdictError, Reason: deadlineReason}
	}
	return v.Policy.Decide(row, ev)
}

func (v *Verifier) gather(ctx context.Context, mode models.SourceMode, row models.UploadRow) Evidence {
	if row.OrderNumber == "" {
		pkgs, err := v.Source.FindByTracking(ctx, mode, row.TrackingNumber, row.AssertedDate)
		if err != nil {
			return Evidence{LookupErr: err, ByTracking: true}
		}
		return Evidence{ByTracking: true, Exists: len(pkgs) > 0, Packages: pkgs}
	}

	rec, err := v.Source.GetOrder(ctx, mode, row.OrderNumber)
	if err != nil {
		return Evidence{LookupErr: err}
	}
	if rec == nil || !rec.Exists {
		return Evidence{}
	}
	pkgs, err := v.Source.GetActivity(ctx, mode, row.OrderNumber)
	if err != nil {
		return Evidence{LookupErr: err}
	}
	return Evidence{Exists: true, TruthParty: rec.PartyName, Packages: pkgs}
}

// Verify evaluates every interpretation of row concurrently and in full, then
// reports the strongest one.
func (v *Verifier) Verify(ctx context.Context, row models.UploadRow) models.ReconciliationResult {
	modes := v.Interpretations(row)
	decisions := make([]Decision, len(modes))

	var wg sync.WaitGroup
	for i, mode := range modes {
		wg.Add(1)
		go func(i int, mode models.SourceMode) {
			defer wg.Done()
			decisions[i] = v.Evaluate(ctx, mode, row)
		}(i, mode)
	}
	wg.Wait()

	verdicts := make([]models.Verdict, len(decisions))
	for i, d := range decisions {
		verdicts[i] = d.Verdict
	}

	res := rowResult(row)
	best := Choose(verdicts)
	if best < 0 {
		res.Verdict = models.VerdictError
		res.Reason = "no interpretation to evaluate"
		return res
	}

	chosen := decisions[best]
	res.ChosenMode = modes[best]
	res.Verdict = chosen.Verdict
	res.Reason = chosen.Reason
	res.DayDelta = chosen.DayDelta
	res.ActualDate = chosen.ActualDate
	res.PartyTruth = chosen.TruthParty

	for i, mode := range modes {
		switch mode {
		case models.ModePO:
			res.POVerdict, res.POReason = decisions[i].Verdict, decisions[i].Reason
		case models.ModeSO:
			res.SOVerdict, res.SOReason = decisions[i].Verdict, decisions[i].Reason
		}
	}
	return res
}

// rowResult carries an uploaded row's display fields into a result.
func rowResult(row models.UploadRow) models.ReconciliationResult {
	return models.ReconciliationResult{
		Row:            row.RowIndex,
		SourceFile:     row.SourceFile,
		SourceLabel:    sourceLabel(row.SourceMode),
		SourceMode:     row.SourceMode,
		ChosenMode:     row.SourceMode,
		OrderNumber:    row.OrderNumber,
		PartyUpload:    row.PartyName,
		TrackingUpload: row.TrackingNumber,
		AssertedDate:   row.AssertedDate,
	}
}

// errorResult is emitted for a row that could not be reconciled at all.
func errorResult(row models.UploadRow, reason string) models.ReconciliationResult {
	res := rowResult(row)
	res.Verdict = models.VerdictError
	res.Reason = reason
	return res
}
