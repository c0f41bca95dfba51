package parser

import (
	"regexp"
	"strings"
)

var (
	// UPS-style: "1Z" followed by at least 16 alphanumerics.
	upsTrackingPattern = regexp.MustCompile(`(?i)1Z[0-9A-Z]{16,}`)
	// Once separators are stripped, word boundaries are gone; take the
	// standard 18 character UPS length.
	upsCompactPattern = regexp.MustCompile(`(?i)1Z[0-9A-Z]{16}`)
	// Generic carrier token: 10+ alphanumerics containing at least one digit.
	genericTokenPattern = regexp.MustCompile(`[0-9A-Za-z]{10,}`)
	nonAlphanumeric     = regexp.MustCompile(`[^0-9A-Za-z]+`)
	hasDigit            = regexp.MustCompile(`[0-9]`)
)

// NormalizeTracking uppercases a tracking number and drops every
// non-alphanumeric character.
func NormalizeTracking(s string) string {
	return strings.ToUpper(nonAlphanumeric.ReplaceAllString(s, ""))
}

// ExtractTracking recovers a carrier tracking token from noisy text.
// It tries the UPS pattern on the raw text, then on the text with all
// separators removed. With allowGeneric it finally accepts any run of 10+
// alphanumerics that contains a digit. The result is normalized; "" means
// nothing plausible was found.
func ExtractTracking(text string, allowGeneric bool) string {
	if tok := carrierToken(text); tok != "" {
		return tok
	}
	if allowGeneric {
		return genericToken(text)
	}
	return ""
}

func carrierToken(text string) string {
	if m := upsTrackingPattern.FindString(text); m != "" {
		return NormalizeTracking(m)
	}
	if m := upsCompactPattern.FindString(nonAlphanumeric.ReplaceAllString(text, "")); m != "" {
		return NormalizeTracking(m)
	}
	return ""
}

func genericToken(text string) string {
	for _, m := range genericTokenPattern.FindAllString(text, -1) {
		if hasDigit.MatchString(m) {
			return NormalizeTracking(m)
		}
	}
	return ""
}

// scanRowForTracking looks through every cell of a row, in column order.
// A carrier-specific match anywhere in the row beats a generic token.
func scanRowForTracking(cells []string, allowGeneric bool) string {
	for _, c := range cells {
		if m := upsTrackingPattern.FindString(c); m != "" {
			return NormalizeTracking(m)
		}
	}
	for _, c := range cells {
		if m := upsCompactPattern.FindString(nonAlphanumeric.ReplaceAllString(c, "")); m != "" {
			return NormalizeTracking(m)
		}
	}
	if !allowGeneric {
		return ""
	}
	for _, c := range cells {
		if tok := genericToken(c); tok != "" {
			return tok
		}
	}
	return ""
}
