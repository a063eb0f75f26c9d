// Package calendar provides business-day calendars used for settlement
// and expiry date arithmetic.
//
// Holidays are computed from rules, never from tables, so every calendar
// is an immutable value that is safe to share across goroutines.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ID identifies a business-day calendar.
type ID string

const (
	// UnitedStatesNYSE is the New York Stock Exchange calendar used for
	// listed equity and equity option settlement.
	UnitedStatesNYSE ID = "US-NYSE"
	// UnitedStatesSettlement is the generic US settlement calendar
	// (Federal Reserve holidays, no Good Friday).
	UnitedStatesSettlement ID = "US-SETTLEMENT"
	// WeekendsOnly treats every weekday as a business day.
	WeekendsOnly ID = "WEEKENDS"
)

// ErrUnknownCalendar is returned by Parse for unsupported identifiers.
var ErrUnknownCalendar = errors.New("unknown calendar")

// Parse converts a configuration string into a calendar ID.
// Matching is case-insensitive; an empty string selects UnitedStatesNYSE.
func Parse(s string) (ID, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "US-NYSE", "NYSE", "US-EQUITY":
		return UnitedStatesNYSE, nil
	case "US-SETTLEMENT", "SETTLEMENT", "US":
		return UnitedStatesSettlement, nil
	case "WEEKENDS", "WEEKENDS-ONLY":
		return WeekendsOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCalendar, s)
}

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// DateOf returns the calendar date portion of t as midnight UTC.
// The date is taken in t's own location, so a 23:00 New York timestamp
// keeps its New York date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether t is a holiday of the given calendar.
// Weekends are not holidays; see IsBusinessDay.
func IsHoliday(cal ID, t time.Time) bool {
	d := DateOf(t)
	switch cal {
	case UnitedStatesNYSE:
		return isNYSEHoliday(d)
	case UnitedStatesSettlement:
		return isSettlementHoliday(d)
	default:
		return false
	}
}

// IsBusinessDay checks weekends and the calendar's holiday rules.
func IsBusinessDay(cal ID, t time.Time) bool {
	if IsWeekend(t) {
		return false
	}
	return !IsHoliday(cal, t)
}

// AdjustFollowing rolls t forward to the first business day on or after it.
func AdjustFollowing(cal ID, t time.Time) time.Time {
	d := DateOf(t)
	for !IsBusinessDay(cal, d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AdjustModifiedFollowing applies Following unless that crosses into the
// next month, in which case it rolls backward instead.
func AdjustModifiedFollowing(cal ID, t time.Time) time.Time {
	d := DateOf(t)
	adj := AdjustFollowing(cal, d)
	if adj.Month() == d.Month() {
		return adj
	}
	for !IsBusinessDay(cal, d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Advance moves t by n business days (n may be negative). Only the date
// portion of t is used and the result is midnight UTC.
//
// With n == 0 the date is adjusted Following, so the result is always a
// business day. Advancing preserves order: if a <= b then
// Advance(cal, a, n) <= Advance(cal, b, n).
func Advance(cal ID, t time.Time, n int) time.Time {
	d := DateOf(t)
	if n == 0 {
		return AdjustFollowing(cal, d)
	}
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		d = d.AddDate(0, 0, step)
		if IsBusinessDay(cal, d) {
			n -= step
		}
	}
	return d
}

// BusinessDaysBetween counts business days in (from, to]. The count is
// negative when to is before from.
func BusinessDaysBetween(cal ID, from, to time.Time) int {
	a, b := DateOf(from), DateOf(to)
	sign := 1
	if b.Before(a) {
		a, b = b, a
		sign = -1
	}
	n := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(cal, d) {
			n++
		}
	}
	return sign * n
}

// Holidays lists the holidays of a calendar in [from, to], in order.
func Holidays(cal ID, from, to time.Time) []time.Time {
	var out []time.Time
	for d := DateOf(from); !d.After(DateOf(to)); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) && IsHoliday(cal, d) {
			out = append(out, d)
		}
	}
	return out
}
