package models

import "fmt"

// Verdict is the categorical outcome of reconciling one row or tracking group.
type Verdict int

const (
	VerdictUnset Verdict = iota
	VerdictOK
	VerdictMismatch
	VerdictNotFound
	VerdictError
	VerdictMatchPO
	VerdictMatchShipDocs
	VerdictUnmatchedUPS
)

var verdictNames = map[Verdict]string{
	VerdictUnset:         "",
	VerdictOK:            "OK",
	VerdictMismatch:      "MISMATCH",
	VerdictNotFound:      "NOT_FOUND",
	VerdictError:         "ERROR",
	VerdictMatchPO:       "MATCH_PO",
	VerdictMatchShipDocs: "MATCH_SHIPDOCS",
	VerdictUnmatchedUPS:  "UNMATCHED_UPS",
}

// AllVerdicts lists every named verdict in display order.
var AllVerdicts = []Verdict{
	VerdictOK,
	VerdictMismatch,
	VerdictNotFound,
	VerdictError,
	VerdictMatchPO,
	VerdictMatchShipDocs,
	VerdictUnmatchedUPS,
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Rank orders the verification verdicts: OK > MISMATCH > NOT_FOUND > ERROR.
// Verdicts that do not take part in verification scoring report ok=false.
func (v Verdict) Rank() (rank int, ok bool) {
	switch v {
	case VerdictOK:
		return 3, true
	case VerdictMismatch:
		return 2, true
	case VerdictNotFound:
		return 1, true
	case VerdictError:
		return 0, true
	default:
		return 0, false
	}
}

// Better reports whether a ranks strictly above b. Unranked verdicts never win.
func Better(a, b Verdict) bool {
	ra, okA := a.Rank()
	if !okA {
		return false
	}
	rb, okB := b.Rank()
	if !okB {
		return true
	}
	return ra > rb
}

func (v Verdict) MarshalText() ([]byte, error) {
	name, ok := verdictNames[v]
	if !ok {
		return nil, fmt.Errorf("unknown verdict %d", int(v))
	}
	return []byte(name), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	for k, name := range verdictNames {
		if name == string(b) {
			*v = k
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", string(b))
}
