package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Strategy selects the matching strategy used for a request.
type Strategy string

const (
	StrategyAuto   Strategy = "auto"
	StrategyMerge  Strategy = "merge"
	StrategyVerify Strategy = "verify"
)

// ParseStrategy accepts "", "auto", "merge" and "verify".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "merge", "bucket", "crossfile":
		return StrategyMerge, nil
	case "verify", "truth", "truthsource":
		return StrategyVerify, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (use auto, merge or verify)", s)
	}
}

// DayDelta is an optional day difference. It marshals to "" when unknown.
type DayDelta struct {
	Days  int
	Valid bool
}

// Delta returns a known day difference.
func Delta(days int) DayDelta {
	return DayDelta{Days: days, Valid: true}
}

func (d DayDelta) String() string {
	if !d.Valid {
		return ""
	}
	return strconv.Itoa(d.Days)
}

func (d DayDelta) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte(`""`), nil
	}
	return []byte(strconv.Itoa(d.Days)), nil
}

func (d *DayDelta) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = DayDelta{}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("day delta %q: %w", s, err)
	}
	*d = Delta(n)
	return nil
}

// ReconciliationResult is one verdict returned to the caller. It describes
// either one uploaded row (Row > 0) or one deduplicated tracking group.
type ReconciliationResult struct {
	Row            int        `json:"row"`
	TrackingKey    string     `json:"trackingKey,omitempty"`
	SourceFile     string     `json:"sourceFile"`
	SourceLabel    string     `json:"sourceLabel"`
	SourceMode     SourceMode `json:"sourceMode"`
	ChosenMode     SourceMode `json:"chosenMode"`
	OrderNumber    string     `json:"orderNumber"`
	PartyUpload    string     `json:"partyUpload"`
	PartyTruth     string     `json:"partyTruth"`
	TrackingUpload string     `json:"trackingUpload"`
	AssertedDate   Date       `json:"assertedDate"`
	ActualDate     Date       `json:"actualDate"`
	Verdict        Verdict    `json:"verdict"`
	Reason         string     `json:"reason"`
	DayDelta       DayDelta   `json:"dayDelta"`
	POVerdict      Verdict    `json:"poVerdict"`
	POReason       string     `json:"poReason"`
	SOVerdict      Verdict    `json:"soVerdict"`
	SOReason       string     `json:"soReason"`
}

// Summary counts final verdicts across a result list.
type Summary struct {
	Counts            map[Verdict]int
	TotalRowsReturned int
}

// Count returns the number of results carrying v.
func (s Summary) Count(v Verdict) int {
	return s.Counts[v]
}

// MarshalJSON flattens the counts next to totalRowsReturned.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(s.Counts)+1)
	for v, n := range s.Counts {
		out[v.String()] = n
	}
	out["totalRowsReturned"] = s.TotalRowsReturned
	return json.Marshal(out)
}

func (s *Summary) UnmarshalJSON(b []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Counts = make(map[Verdict]int)
	for k, n := range raw {
		if k == "totalRowsReturned" {
			s.TotalRowsReturned = n
			continue
		}
		var v Verdict
		if err := v.UnmarshalText([]byte(k)); err != nil {
			return err
		}
		s.Counts[v] = n
	}
	return nil
}

// Report is the full response of one reconciliation request.
type Report struct {
	RequestID string                 `json:"requestId"`
	Strategy  Strategy               `json:"strategy"`
	Summary   Summary                `json:"summary"`
	Details   []ReconciliationResult `json:"details"`
}
