package volatility

import (
	"fmt"
	"math"
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
)

// ConstantVol is a flat term structure: the same volatility for every
// strike and maturity.
type ConstantVol struct {
	referenceDate time.Time
	cal           calendar.ID
	volatility    float64
	dayCounter    daycount.Convention
}

// NewConstantVol builds a flat structure anchored at referenceDate (date
// portion only).
func NewConstantVol(referenceDate time.Time, cal calendar.ID, vol float64, dc daycount.Convention) (*ConstantVol, error) {
	if vol < 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVolatility, vol)
	}
	if dc == nil {
		dc = daycount.Actual365Fixed{}
	}
	return &ConstantVol{
		referenceDate: calendar.DateOf(referenceDate),
		cal:           cal,
		volatility:    vol,
		dayCounter:    dc,
	}, nil
}

// VolatilityAt ignores strike and maturity.
func (c *ConstantVol) VolatilityAt(float64, time.Time) float64 { return c.volatility }

// Volatility is the scalar the structure was built with.
func (c *ConstantVol) Volatility() float64 { return c.volatility }

func (c *ConstantVol) ReferenceDate() time.Time        { return c.referenceDate }
func (c *ConstantVol) DayCounter() daycount.Convention { return c.dayCounter }
func (c *ConstantVol) Calendar() calendar.ID           { return c.cal }
