package reconcile

import "github.com/insightdelivered/order-reconciler/internal/models"

// Choose returns the index of the strongest verdict. Candidates are compared
// with a strict greater-than against the current choice, so on a tie the
// first-evaluated interpretation keeps the win. It returns -1 for no candidates.
func Choose(verdicts []models.Verdict) int {
	if len(verdicts) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(verdicts); i++ {
		if models.Better(verdicts[i], verdicts[best]) {
			best = i
		}
	}
	return best
}

var strategyVerdicts = map[models.Strategy][]models.Verdict{
	models.StrategyMerge: {
		models.VerdictMatchPO,
		models.VerdictMatchShipDocs,
		models.VerdictUnmatchedUPS,
		models.VerdictError,
	},
	models.StrategyVerify: {
		models.VerdictOK,
		models.VerdictMismatch,
		models.VerdictNotFound,
		models.VerdictError,
	},
}

// Summarize counts final verdicts. Every verdict the strategy can produce is
// present in the counts, zero or not.
func Summarize(strategy models.Strategy, results []models.ReconciliationResult) models.Summary {
	s := models.Summary{Counts: make(map[models.Verdict]int), TotalRowsReturned: len(results)}
	for _, v := range strategyVerdicts[strategy] {
		s.Counts[v] = 0
	}
	for _, r := range results {
		s.Counts[r.Verdict]++
	}
	return s
}
