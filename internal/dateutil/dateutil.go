// Package dateutil holds the pure date helpers behind the month grid.
package dateutil

import (
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// FormatDate returns "YYYY-MM-DD" built from t's own calendar fields.
// Callers convert t into the display location first when needed.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatClock returns "HH:MM" for t in its own location.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// FirstWeekdayOffset returns the number of filler cells before day 1 of t's
// month in a Monday-first week (0 = Monday, 6 = Sunday).
func FirstWeekdayOffset(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return (int(first.Weekday()) + 6) % 7
}

// DaysInMonth uses day 0 of the following month, which normalizes to the
// last day of the requested one.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthStart returns midnight of the first day of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// AddMonths moves a month start by n months. Anchoring on day 1 avoids the
// Jan 31 + 1 month = Mar 3 overflow.
func AddMonths(monthStart time.Time, n int) time.Time {
	return time.Date(monthStart.Year(), monthStart.Month()+time.Month(n), 1, 0, 0, 0, 0, monthStart.Location())
}

// ParseDate parses "YYYY-MM-DD" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return FormatDate(a.In(loc)) == FormatDate(b.In(loc))
}
