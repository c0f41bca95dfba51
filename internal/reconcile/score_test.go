package reconcile

import (
	"testing"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

func TestChoose(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []models.Verdict
		want     int
	}{
		{"empty", nil, -1},
		{"single", []models.Verdict{models.VerdictNotFound}, 0},
		{"second is stronger", []models.Verdict{models.VerdictNotFound, models.VerdictOK}, 1},
		{"first is stronger", []models.Verdict{models.VerdictMismatch, models.VerdictError}, 0},
		{"tie keeps first", []models.Verdict{models.VerdictMismatch, models.VerdictMismatch}, 0},
		{"error loses to not found", []models.Verdict{models.VerdictError, models.VerdictNotFound}, 1},
		{"unranked never wins", []models.Verdict{models.VerdictError, models.VerdictMatchPO}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Choose(tt.verdicts); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChoose_MonotonicInEvaluationOrder(t *testing.T) {
	ranked := []models.Verdict{models.VerdictOK, models.VerdictMismatch, models.VerdictNotFound, models.VerdictError}
	for _, a := range ranked {
		for _, b := range ranked {
			if !models.Better(a, b) {
				continue
			}
			if got := Choose([]models.Verdict{a, b}); got != 0 {
				t.Errorf("%s vs %s: stronger first not chosen", a, b)
			}
			if got := Choose([]models.Verdict{b, a}); got != 1 {
				t.Errorf("%s vs %s: stronger second not chosen", b, a)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	results := []models.ReconciliationResult{
		{Verdict: models.VerdictOK},
		{Verdict: models.VerdictOK},
		{Verdict: models.VerdictError},
	}
	s := Summarize(models.StrategyVerify, results)

	if s.TotalRowsReturned != 3 {
		t.Errorf("total: got %d, want 3", s.TotalRowsReturned)
	}
	if s.Count(models.VerdictOK) != 2 || s.Count(models.VerdictError) != 1 {
		t.Errorf("counts: %v", s.Counts)
	}
	if _, ok := s.Counts[models.VerdictNotFound]; !ok {
		t.Error("zero counts should be present for the strategy's verdicts")
	}
	if _, ok := s.Counts[models.VerdictMatchPO]; ok {
		t.Error("merge verdicts should not appear in a verify summary")
	}
}
