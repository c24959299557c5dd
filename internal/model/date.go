package model

import (
	"regexp"
	"time"
)

// DateLayout is the compact YYYYMMDD layout used in file names and API params.
const DateLayout = "20060102"

// CST is China Standard Time, the exchange's timezone.
var CST = time.FixedZone("CST", 8*3600)

// digitRun matches runs of 8 or more digits; a date is the run's last 8 digits,
// so "60090020251017" yields 20251017.
var digitRun = regexp.MustCompile(`\d{8,}`)

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight in the exchange timezone.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.In(CST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, CST)
}

// FormatDate formats t as YYYYMMDD.
func FormatDate(t time.Time) string { return t.In(CST).Format(DateLayout) }

// ParseDate parses a YYYYMMDD string in the exchange timezone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, CST)
}

// ExtractDate finds the last valid date embedded in s, taken from the tail of a digit run.
func ExtractDate(s string) (time.Time, bool) {
	locs := digitRun.FindAllStringIndex(s, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		end := locs[i][1]
		if t, err := ParseDate(s[end-8 : end]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ReplaceDate swaps the last embedded date in s for t, keeping any digits before
// it in the same run. ok is false when s has none.
func ReplaceDate(s string, t time.Time) (string, bool) {
	locs := digitRun.FindAllStringIndex(s, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		end := locs[i][1]
		if _, err := ParseDate(s[end-8 : end]); err == nil {
			return s[:end-8] + FormatDate(t) + s[end:], true
		}
	}
	return s, false
}
