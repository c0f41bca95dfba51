package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// Spreadsheet serial dates count days from 1899-12-30. No 1900 leap-year
// correction is applied.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// 9999-12-31 as a serial.
const maxSerial = 2958465

var (
	serialPattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	// "<date> - <date>", "<date> to <date>", "<date>–<date>"
	rangePattern = regexp.MustCompile(`(?i)^(.+?)(?:\s+(?:-|to)\s+|\s*[–—]\s*)(.+)$`)
	// "1/5/2024-1/7/2024" has no spaces around the hyphen.
	slashRangePattern = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4})\s*-\s*\d{1,2}/\d{1,2}/\d{2,4}$`)
)

// Layouts tried before the generic parser, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate normalizes a cell value to a calendar date. It accepts native
// time values, spreadsheet serials, range strings (first bound kept) and
// free text. ok is false when nothing usable was found; that is not an error.
func ParseDate(v any) (d models.Date, ok bool) {
	switch c := v.(type) {
	case nil:
		return models.Date{}, false
	case time.Time:
		if c.IsZero() {
			return models.Date{}, false
		}
		return models.DateOf(c), true
	case *time.Time:
		if c == nil {
			return models.Date{}, false
		}
		return ParseDate(*c)
	case models.Date:
		return c, !c.IsZero()
	case float64:
		return fromSerial(c)
	case int:
		return fromSerial(float64(c))
	case int64:
		return fromSerial(float64(c))
	case string:
		return parseDateText(c)
	default:
		return models.Date{}, false
	}
}

func fromSerial(serial float64) (models.Date, bool) {
	if serial < 1 || serial > maxSerial || math.IsNaN(serial) {
		return models.Date{}, false
	}
	return models.DateOf(serialEpoch.AddDate(0, 0, int(math.Floor(serial)))), true
}

func parseDateText(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, false
	}

	if serialPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if d, ok := fromSerial(f); ok {
				return d, true
			}
		}
	}

	if m := slashRangePattern.FindStringSubmatch(s); m != nil {
		return parseFreeText(m[1])
	}
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		if d, ok := parseFreeText(m[1]); ok {
			return d, true
		}
	}

	return parseFreeText(s)
}

func parseFreeText(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return models.Date{}, false
	}
	return models.DateOf(t), true
}
