package service

import (
	"fmt"
	"time"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/series"
)

// ResolveDateRange turns a DateRangeSpec into concrete days. An absolute range wins over
// a relative one; a relative range ends on the day of now. ok is false when no range is set.
func ResolveDateRange(spec models.DateRangeSpec, now time.Time) (r models.DateRange, ok bool, err error) {
	if spec.Begin != 0 || spec.End != 0 {
		if spec.Begin == 0 || spec.End == 0 {
			return r, false, fmt.Errorf("%w: absolute date range needs begin and end", ErrInvalidInput)
		}
		if !inYearRange(spec.Begin) || !inYearRange(spec.End) {
			return r, false, fmt.Errorf("%w: %w: timestamps must fall in years 1 to 9999", ErrInvalidInput, series.ErrInvalidRange)
		}
		r = models.DateRange{
			Begin: series.Day(time.Unix(spec.Begin, 0).UTC()),
			End:   series.Day(time.Unix(spec.End, 0).UTC()),
		}
		if r.End.Before(r.Begin) {
			return r, false, fmt.Errorf("%w: date range ends before it begins", ErrInvalidInput)
		}
		if err := checkLength(r); err != nil {
			return r, false, err
		}
		return r, true, nil
	}

	if spec.Quantity == 0 && spec.Unit == "" {
		return r, false, nil
	}
	if spec.Quantity < 1 {
		return r, false, fmt.Errorf("%w: relative date range quantity must be positive", ErrInvalidInput)
	}
	// Every unit is at least a day; this also keeps AddDate away from overflow
	if spec.Quantity > series.MaxDays {
		return r, false, fmt.Errorf("%w: %w: quantity %d too large", ErrInvalidInput, series.ErrInvalidRange, spec.Quantity)
	}

	end := series.Day(now.UTC())
	var begin time.Time
	switch spec.Unit {
	case models.UnitDay:
		begin = end.AddDate(0, 0, -spec.Quantity)
	case models.UnitWeek:
		begin = end.AddDate(0, 0, -7*spec.Quantity)
	case models.UnitMonth:
		begin = end.AddDate(0, -spec.Quantity, 0)
	case models.UnitYear:
		begin = end.AddDate(-spec.Quantity, 0, 0)
	default:
		return r, false, fmt.Errorf("%w: unknown date range unit %q", ErrInvalidInput, spec.Unit)
	}

	r = models.DateRange{Begin: begin, End: end}
	if err := checkLength(r); err != nil {
		return r, false, err
	}
	return r, true, nil
}

// Unix seconds of 0001-01-01 and 9999-12-31 23:59:59 UTC
const (
	minUnix = -62135596800
	maxUnix = 253402300799
)

func inYearRange(sec int64) bool {
	return sec >= minUnix && sec <= maxUnix
}

func checkLength(r models.DateRange) error {
	if n := series.DayCount(r.Begin, r.End); n > series.MaxDays {
		return fmt.Errorf("%w: %w: %d days exceeds %d", ErrInvalidInput, series.ErrInvalidRange, n, series.MaxDays)
	}
	return nil
}
