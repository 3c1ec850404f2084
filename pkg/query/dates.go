package query

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MinYear is the earliest year the analytics endpoint accepts.
const MinYear = 2006

// ErrInvalidDateRange is returned when a date range fails validation.
var ErrInvalidDateRange = errors.New("invalid date range")

// Date is a calendar day as sent to the analytics endpoint.
type Date struct {
	Year  int
	Month int
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: parse %q: %v", ErrInvalidDateRange, s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// DateRange is an optional analytics window. A nil bound is left to the
// provider default (start 1/1/2006, no end).
type DateRange struct {
	Start *Date
	End   *Date
}

// Params returns the dateRange.* overrides for the set bounds.
func (r DateRange) Params() Params {
	p := Params{}
	if r.Start != nil {
		p["dateRange.start.day"] = strconv.Itoa(r.Start.Day)
		p["dateRange.start.month"] = strconv.Itoa(r.Start.Month)
		p["dateRange.start.year"] = strconv.Itoa(r.Start.Year)
	}
	if r.End != nil {
		p["dateRange.end.day"] = strconv.Itoa(r.End.Day)
		p["dateRange.end.month"] = strconv.Itoa(r.End.Month)
		p["dateRange.end.year"] = strconv.Itoa(r.End.Year)
	}
	return p
}

// ValidateDateRange checks r against now: the start must fall between
// 1/1/2006 and today, the end must not precede 2006, and the start must not
// come after the end.
func ValidateDateRange(r DateRange, now time.Time) error {
	today := DateOf(now)

	if r.Start != nil {
		if r.Start.Year < MinYear {
			return fmt.Errorf("%w: start date %s is before %d", ErrInvalidDateRange, r.Start, MinYear)
		}
		if today.Before(*r.Start) {
			return fmt.Errorf("%w: start date %s is in the future", ErrInvalidDateRange, r.Start)
		}
	}

	if r.End != nil && r.End.Year < MinYear {
		return fmt.Errorf("%w: end date %s is before %d", ErrInvalidDateRange, r.End, MinYear)
	}

	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidDateRange, r.Start, r.End)
	}

	return nil
}
