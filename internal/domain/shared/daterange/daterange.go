package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval of nights [checkIn, checkOut).
// The night of CheckOut itself is not occupied.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a range from two calendar days. Both ends are truncated to
// midnight UTC before validation.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Day truncates t to the calendar day it falls on, in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24)
}

// LastNight is the inclusive upper bound used for ledger range queries.
func (dr DateRange) LastNight() time.Time {
	return dr.CheckOut.AddDate(0, 0, -1)
}

// Dates enumerates every occupied night in the range.
func (dr DateRange) Dates() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

// StartsBefore reports whether the first night precedes the given day.
func (dr DateRange) StartsBefore(t time.Time) bool {
	return dr.CheckIn.Before(Day(t))
}

// EndsAfter reports whether the checkout day is strictly after the given day.
func (dr DateRange) EndsAfter(t time.Time) bool {
	return dr.CheckOut.After(Day(t))
}

// Span returns the number of whole days between two normalized dates.
func Span(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)) / day)
}
