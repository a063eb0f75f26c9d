package volatility

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
)

// ErrInvalidExpression is returned when a shock expression does not parse
// or does not evaluate to a number.
var ErrInvalidExpression = errors.New("invalid shock expression")

// shockFunctions are available inside shock expressions.
var shockFunctions = map[string]govaluate.ExpressionFunction{
	"max": func(args ...interface{}) (interface{}, error) {
		a, b, err := twoFloats("max", args)
		if err != nil {
			return nil, err
		}
		return math.Max(a, b), nil
	},
	"min": func(args ...interface{}) (interface{}, error) {
		a, b, err := twoFloats("min", args)
		if err != nil {
			return nil, err
		}
		return math.Min(a, b), nil
	},
	"sqrt": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sqrt expects 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("sqrt expects a number")
		}
		return math.Sqrt(x), nil
	},
}

func twoFloats(name string, args []interface{}) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%s expects 2 arguments, got %d", name, len(args))
	}
	a, okA := args[0].(float64)
	b, okB := args[1].(float64)
	if !okA || !okB {
		return 0, 0, fmt.Errorf("%s expects numbers", name)
	}
	return a, b, nil
}

// Shock is a compiled scenario expression over the variables
//
//	vol    base volatility at the queried point
//	strike queried strike
//	t      year fraction from the reference date to the maturity
//	days   calendar days from the reference date to the maturity
//
// e.g. "vol * 1.1", "vol + 0.02", "max(vol - 0.05, 0.01)".
// A Shock is read-only after ParseShock and safe for concurrent use.
type Shock struct {
	text string
	expr *govaluate.EvaluableExpression
}

// ParseShock compiles text and checks that it yields a number.
func ParseShock(text string) (*Shock, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(text, shockFunctions)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, text, err)
	}
	s := &Shock{text: text, expr: expr}
	if _, err := s.Apply(0.2, 100, 1, 365); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply evaluates the shock at one point.
func (s *Shock) Apply(vol, strike, t float64, days int) (float64, error) {
	out, err := s.expr.Evaluate(map[string]interface{}{
		"vol":    vol,
		"strike": strike,
		"t":      t,
		"days":   float64(days),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, s.text, err)
	}
	f, ok := out.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q evaluated to %v", ErrInvalidExpression, s.text, out)
	}
	return f, nil
}

func (s *Shock) String() string { return s.text }

// Shocked applies a Shock on top of another term structure. Negative
// shocked values are floored at zero; if the expression fails at a point
// the base volatility is returned unchanged.
type Shocked struct {
	base  TermStructure
	shock *Shock
}

// NewShocked wraps base.
func NewShocked(base TermStructure, shock *Shock) *Shocked {
	return &Shocked{base: base, shock: shock}
}

func (s *Shocked) VolatilityAt(strike float64, maturity time.Time) float64 {
	v := s.base.VolatilityAt(strike, maturity)
	ref := s.base.ReferenceDate()
	dc := s.base.DayCounter()
	out, err := s.shock.Apply(v, strike, dc.YearFraction(ref, maturity), dc.DayCount(ref, maturity))
	if err != nil {
		return v
	}
	return math.Max(out, 0)
}

// Base returns the unshocked structure.
func (s *Shocked) Base() TermStructure { return s.base }

func (s *Shocked) ReferenceDate() time.Time        { return s.base.ReferenceDate() }
func (s *Shocked) DayCounter() daycount.Convention { return s.base.DayCounter() }
func (s *Shocked) Calendar() calendar.ID           { return s.base.Calendar() }
