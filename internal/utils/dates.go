package utils

import (
	"fmt"
	"strings"
	"time"
)

// ISODate is the layout used for service dates on every surface.
const ISODate = "2006-01-02"

// ordinalOfUnixEpoch is the proleptic Gregorian ordinal of 1970-01-01 (0001-01-01 is day 1).
const ordinalOfUnixEpoch = 719163

// ParseISODate parses an ISO-8601 calendar date. Full RFC3339 timestamps are
// accepted and truncated to their UTC date.
func ParseISODate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	if t, err := time.Parse(ISODate, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return DateOnly(t), nil
}

// DateOnly drops the clock component, keeping the UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(ISODate)
}

// Ordinal returns the day count of t's calendar date where 0001-01-01 is 1.
func Ordinal(t time.Time) int64 {
	days := DateOnly(t).Unix() / 86400
	return days + ordinalOfUnixEpoch
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return DateOnly(t).AddDate(0, 0, n)
}
