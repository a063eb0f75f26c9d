// Package daycount converts date intervals into year fractions.
package daycount

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownConvention is returned by Parse for unsupported names.
var ErrUnknownConvention = errors.New("unknown day count convention")

// Convention is a day-count rule. Implementations are stateless values,
// safe for concurrent use.
type Convention interface {
	Name() string
	DayCount(start, end time.Time) int
	YearFraction(start, end time.Time) float64
}

// Actual365Fixed divides actual days by 365.
type Actual365Fixed struct{}

// Actual360 divides actual days by 360.
type Actual360 struct{}

// Thirty360 is the 30E/360 (Eurobond basis) convention: day-of-month
// values of 31 are capped at 30.
type Thirty360 struct{}

// ActualActualISDA splits the interval by calendar year and divides each
// piece by the length of its year.
type ActualActualISDA struct{}

func (Actual365Fixed) Name() string   { return "ACT/365F" }
func (Actual360) Name() string        { return "ACT/360" }
func (Thirty360) Name() string        { return "30E/360" }
func (ActualActualISDA) Name() string { return "ACT/ACT" }

func (Actual365Fixed) DayCount(start, end time.Time) int   { return actualDays(start, end) }
func (Actual360) DayCount(start, end time.Time) int        { return actualDays(start, end) }
func (ActualActualISDA) DayCount(start, end time.Time) int { return actualDays(start, end) }

func (c Actual365Fixed) YearFraction(start, end time.Time) float64 {
	return float64(c.DayCount(start, end)) / 365.0
}

func (c Actual360) YearFraction(start, end time.Time) float64 {
	return float64(c.DayCount(start, end)) / 360.0
}

func (Thirty360) DayCount(start, end time.Time) int {
	d1 := start.Day()
	if d1 > 30 {
		d1 = 30
	}
	d2 := end.Day()
	if d2 > 30 {
		d2 = 30
	}
	y1, m1 := start.Year(), int(start.Month())
	y2, m2 := end.Year(), int(end.Month())
	return 360*(y2-y1) + 30*(m2-m1) + (d2 - d1)
}

func (c Thirty360) YearFraction(start, end time.Time) float64 {
	return float64(c.DayCount(start, end)) / 360.0
}

func (ActualActualISDA) YearFraction(start, end time.Time) float64 {
	a, b := dateOf(start), dateOf(end)
	if a.Equal(b) {
		return 0
	}
	if b.Before(a) {
		return -ActualActualISDA{}.YearFraction(b, a)
	}
	yf := 0.0
	for a.Year() < b.Year() {
		next := time.Date(a.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		yf += float64(actualDays(a, next)) / daysInYear(a.Year())
		a = next
	}
	return yf + float64(actualDays(a, b))/daysInYear(b.Year())
}

// Parse resolves a convention name. An empty name selects Actual365Fixed,
// the convention used for equity option volatility.
func Parse(name string) (Convention, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "ACT/365F", "ACT/365", "ACTUAL365FIXED":
		return Actual365Fixed{}, nil
	case "ACT/360", "ACTUAL360":
		return Actual360{}, nil
	case "30E/360", "30/360", "THIRTY360":
		return Thirty360{}, nil
	case "ACT/ACT", "ACT/ACT ISDA", "ACTUALACTUAL":
		return ActualActualISDA{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownConvention, name)
}

// actualDays counts calendar days between the date portions of start and
// end, so DST transitions never yield fractional days.
func actualDays(start, end time.Time) int {
	return int(dateOf(end).Sub(dateOf(start)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysInYear(y int) float64 {
	if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
		return 366
	}
	return 365
}
