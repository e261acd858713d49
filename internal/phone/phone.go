package phone

import (
	"fmt"
	"strings"
)

// KeyLength is the number of digits in a canonical phone key.
const KeyLength = 10

// Normalize canonicalizes any phone representation to a 10-digit key.
//
// Non-digits are stripped, an 11-digit number with a leading country code "1"
// loses it, and longer inputs keep their last 10 digits. Anything that does
// not end up with exactly 10 digits yields "", which callers must treat as
// unindexable. Normalize never fails and is idempotent.
func Normalize(raw any) string {
	var s string
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	case int:
		s = fmt.Sprintf("%d", v)
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		// Spreadsheet cells holding a bare number come through as floats.
		s = fmt.Sprintf("%.0f", v)
	default:
		s = fmt.Sprint(v)
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) == KeyLength+1 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) > KeyLength {
		digits = digits[len(digits)-KeyLength:]
	}
	if len(digits) != KeyLength {
		return ""
	}
	return digits
}

// Valid reports whether raw normalizes to an indexable key.
func Valid(raw any) bool { return Normalize(raw) != "" }

// Last10 returns the last (up to) 10 digits of raw without validating length.
// Dedup keys use it so that short or odd numbers still produce a stable key.
func Last10(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) > KeyLength {
		d = d[len(d)-KeyLength:]
	}
	return d
}

// E164 formats a key as a +1 NANP number. Invalid input yields "".
func E164(raw any) string {
	k := Normalize(raw)
	if k == "" {
		return ""
	}
	return "+1" + k
}

// Display formats a key as (555) 123-4567.
func Display(raw any) string {
	k := Normalize(raw)
	if k == "" {
		return ""
	}
	return fmt.Sprintf("(%s) %s-%s", k[:3], k[3:6], k[6:])
}
