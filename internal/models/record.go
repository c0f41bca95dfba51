package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceMode is the semantic role assigned to a whole uploaded file.
type SourceMode string

const (
	ModePO       SourceMode = "PO"
	ModeSO       SourceMode = "SO"
	ModeShipDocs SourceMode = "ShipDocs"
	ModeUPS      SourceMode = "UPS"
)

// ParseSourceMode accepts the role names used by upload forms and CLI flags.
func ParseSourceMode(s string) (SourceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "po", "purchase", "purchaseorder", "purchase-order":
		return ModePO, nil
	case "so", "sales", "salesorder", "sales-order":
		return ModeSO, nil
	case "shipdocs", "ship-docs", "ship_docs", "shipdoc", "sd":
		return ModeShipDocs, nil
	case "ups", "carrier", "tracking":
		return ModeUPS, nil
	default:
		return "", fmt.Errorf("unknown source mode %q", s)
	}
}

// IsOutbound reports whether the mode describes outbound (customer) documents.
func (m SourceMode) IsOutbound() bool {
	return m == ModeSO || m == ModeShipDocs
}

// Date is a calendar date without a time component. The zero value means unknown.
type Date struct {
	time.Time
}

// NewDate returns the calendar date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// MustDate parses a YYYY-MM-DD literal and panics on failure. Intended for tests and fixtures.
func MustDate(s string) Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return DateOf(t)
}

// String renders YYYY-MM-DD, or "" when the date is unknown.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}

// DaysBetween returns to minus from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}

// UploadRow is one parsed line from an uploaded file.
// Every UploadRow carries an OrderNumber or a TrackingNumber.
type UploadRow struct {
	SourceFile     string     `json:"sourceFile"`
	SourceMode     SourceMode `json:"sourceMode"`
	OrderNumber    string     `json:"orderNumber,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	PartyName      string     `json:"partyName,omitempty"`
	AssertedDate   Date       `json:"assertedDate"`
	RowIndex       int        `json:"rowIndex"`
}

// OrderRecord is the truth source's view of an order.
type OrderRecord struct {
	OrderNumber string `json:"orderNumber"`
	PartyName   string `json:"partyName"`
	Exists      bool   `json:"exists"`
}

// ActivityPackage is one shipped or received parcel tied to an order.
type ActivityPackage struct {
	TrackingNumber string `json:"trackingNumber"`
	Date           Date   `json:"date"`
}

// FilePayload is one uploaded file tagged with its role.
type FilePayload struct {
	Role     SourceMode
	Filename string
	Data     []byte
}
