// Package series turns sparse per-day message counts into dense, gap-filled series.
package series

import (
	"errors"
	"fmt"

	"github.com/jengzang/dmarcviz/internal/models"
)

var (
	// ErrInvalidRange is returned when the range ends before it begins or spans more than MaxDays
	ErrInvalidRange = errors.New("invalid date range")
	// ErrUnsorted is returned when observations are not in ascending date order
	ErrUnsorted = errors.New("observations are not sorted by date")
	// ErrDuplicateDate is returned when two observations fall on the same day
	ErrDuplicateDate = errors.New("duplicate observation date")
	// ErrOutOfRange is returned when an observation lies outside the date range
	ErrOutOfRange = errors.New("observation outside date range")
	// ErrNegativeCount is returned for observations with a count below zero
	ErrNegativeCount = errors.New("negative observation count")
)

// Validate checks the input contract of Densify without building the output
func Validate(observations []models.Observation, r models.DateRange) error {
	begin, end := Day(r.Begin), Day(r.End)
	if end.Before(begin) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, begin.Format(DayLayout), end.Format(DayLayout))
	}
	if n := DayCount(begin, end); n < 1 || n > MaxDays {
		return fmt.Errorf("%w: %d days exceeds %d", ErrInvalidRange, n, MaxDays)
	}

	for i, o := range observations {
		day := Day(o.Date)
		if o.Count < 0 {
			return fmt.Errorf("%w: %d on %s", ErrNegativeCount, o.Count, day.Format(DayLayout))
		}
		if day.Before(begin) || day.After(end) {
			return fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange,
				day.Format(DayLayout), begin.Format(DayLayout), end.Format(DayLayout))
		}
		if i == 0 {
			continue
		}
		prev := Day(observations[i-1].Date)
		if day.Equal(prev) {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, day.Format(DayLayout))
		}
		if day.Before(prev) {
			return fmt.Errorf("%w: %s after %s", ErrUnsorted, day.Format(DayLayout), prev.Format(DayLayout))
		}
	}
	return nil
}

// Densify returns one point per calendar day of the inclusive range r. Days that have an
// observation carry its count, all other days carry zero.
//
// observations must be sorted ascending by day, free of duplicate days and inside r;
// violations are reported as errors and nothing is clipped.
func Densify(observations []models.Observation, r models.DateRange) ([]models.DensifiedPoint, error) {
	if err := Validate(observations, r); err != nil {
		return nil, err
	}

	days := Days(r.Begin, r.End)
	out := make([]models.DensifiedPoint, 0, len(days))

	// Single merge over days and observations; each observation is consumed at most once
	j := 0
	for _, day := range days {
		count := 0
		if j < len(observations) && Day(observations[j].Date).Equal(day) {
			count = observations[j].Count
			j++
		}
		out = append(out, models.DensifiedPoint{Date: day, Count: count})
	}

	return out, nil
}

// Total sums the counts of a densified series
func Total(points []models.DensifiedPoint) int {
	total := 0
	for _, p := range points {
		total += p.Count
	}
	return total
}

// Max returns the largest count of a densified series, 0 for an empty one
func Max(points []models.DensifiedPoint) int {
	max := 0
	for _, p := range points {
		if p.Count > max {
			max = p.Count
		}
	}
	return max
}
