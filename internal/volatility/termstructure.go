// Package volatility turns volatility estimates into date-anchored term
// structures that pricing engines consume.
//
// Responsibilities:
//   - Term structures: constant, strike/expiry surface, scenario-shocked
//   - Estimators: strategies that produce a term structure for an option
//     contract, or report that no estimate is available
//   - Settlement date computation on business-day calendars
//
// Design notes:
//   - Term structures are immutable after construction and safe to share
//   - Estimators are stateless; an unavailable estimate is an ordinary
//     result (false), never an error and never a zero volatility
package volatility

import (
	"errors"
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
)

// Typed errors returned by term structure constructors.
var (
	ErrInvalidVolatility     = errors.New("volatility must be a non-negative number")
	ErrEmptySurface          = errors.New("surface has no smiles")
	ErrExpiryBeforeReference = errors.New("smile expiry is not after the reference date")
	ErrDuplicateExpiry       = errors.New("duplicate smile expiry")
)

// TermStructure exposes Black volatility as a function of strike and
// maturity. VolatilityAt is non-negative and defined for every maturity
// on or after ReferenceDate.
type TermStructure interface {
	VolatilityAt(strike float64, maturity time.Time) float64
	ReferenceDate() time.Time
	DayCounter() daycount.Convention
	Calendar() calendar.ID
}

// Conventions are the calendar and day counter a term structure is built
// with.
type Conventions struct {
	Calendar   calendar.ID
	DayCounter daycount.Convention
}

// DefaultConventions are the US equity option conventions: NYSE business
// days and Actual/365 Fixed.
func DefaultConventions() Conventions {
	return Conventions{Calendar: calendar.UnitedStatesNYSE, DayCounter: daycount.Actual365Fixed{}}
}

func (c Conventions) withDefaults() Conventions {
	d := DefaultConventions()
	if c.Calendar == "" {
		c.Calendar = d.Calendar
	}
	if c.DayCounter == nil {
		c.DayCounter = d.DayCounter
	}
	return c
}

// TimeFromReference is the year fraction from ts's reference date to
// maturity under ts's day counter.
func TimeFromReference(ts TermStructure, maturity time.Time) float64 {
	return ts.DayCounter().YearFraction(ts.ReferenceDate(), maturity)
}

// BlackVariance returns total variance σ²·t at (strike, maturity). It is
// zero at or before the reference date.
func BlackVariance(ts TermStructure, strike float64, maturity time.Time) float64 {
	t := TimeFromReference(ts, maturity)
	if t <= 0 {
		return 0
	}
	v := ts.VolatilityAt(strike, maturity)
	return v * v * t
}
