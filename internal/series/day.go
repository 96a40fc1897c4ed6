package series

import (
	"fmt"
	"time"
)

// DayLayout is the wire format of a calendar day
const DayLayout = "2006-01-02"

// MaxDays caps the length of a range (one 400-year Gregorian cycle)
const MaxDays = 146097

const secondsPerDay = 24 * 60 * 60

// Day truncates t to its calendar day. The year, month and day are read in t's own
// location and the result is midnight UTC, so two instants on the same local day compare equal.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}

// DayCount returns the number of calendar days in the inclusive range [begin, end].
// It returns 0 when end is before begin.
func DayCount(begin, end time.Time) int {
	b, e := Day(begin), Day(end)
	if e.Before(b) {
		return 0
	}
	// Both are UTC midnights, so the difference is a whole number of days.
	// time.Time.Sub saturates after ~292 years; Unix seconds do not.
	return int((e.Unix()-b.Unix())/secondsPerDay) + 1
}

// Days lists every calendar day of the inclusive range [begin, end] in ascending order
func Days(begin, end time.Time) []time.Time {
	n := DayCount(begin, end)
	days := make([]time.Time, 0, n)
	d := Day(begin)
	for i := 0; i < n; i++ {
		days = append(days, d)
		d = d.AddDate(0, 0, 1)
	}
	return days
}
