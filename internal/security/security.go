// Package security models the tradable instruments seen by the pricing
// pipeline: option contracts and the underlyings they reference.
//
// Security is a closed set of variants. Code that needs to tell an option
// from anything else switches on the concrete type:
//
//	switch s := sec.(type) {
//	case *security.Option:
//		// s.Underlying ...
//	default:
//		// not an option
//	}
package security

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind classifies a security.
type Kind int

const (
	KindEquity Kind = iota
	KindIndex
	KindFuture
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindEquity:
		return "equity"
	case KindIndex:
		return "index"
	case KindFuture:
		return "future"
	case KindOption:
		return "option"
	}
	return "unknown"
}

// DefaultSettlementDays is the number of business days between trade and
// settlement for listed options.
const DefaultSettlementDays = 1

// Security is implemented only by the variants in this package.
type Security interface {
	Symbol() string
	Kind() Kind
	sealed()
}

// Equity is a listed stock or ETF.
type Equity struct {
	Ticker string
}

// Index is a non-tradable reference index (e.g. SPX).
type Index struct {
	Ticker string
}

// Future is a listed futures contract.
type Future struct {
	Ticker string
	Expiry time.Time
}

func (e *Equity) Symbol() string { return e.Ticker }
func (e *Equity) Kind() Kind     { return KindEquity }
func (*Equity) sealed()          {}

func (i *Index) Symbol() string { return i.Ticker }
func (i *Index) Kind() Kind     { return KindIndex }
func (*Index) sealed()          {}

func (f *Future) Symbol() string { return f.Ticker }
func (f *Future) Kind() Kind     { return KindFuture }
func (*Future) sealed()          {}

// Right is the option right: call or put.
type Right string

const (
	Call Right = "call"
	Put  Right = "put"
)

// ParseRight accepts call/put in any case, or the C/P shorthand.
func ParseRight(s string) (Right, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", fmt.Errorf("invalid option right %q", s)
}

// Style is the exercise style.
type Style string

const (
	European Style = "european"
	American Style = "american"
)

// Underlying is the security an option is written on, together with the
// volatility model maintained for it. Model may be nil when no model has
// been attached.
type Underlying struct {
	Security Security
	Model    VolatilityModel
}

// Symbol returns the underlying security's symbol, or "" when unset.
func (u *Underlying) Symbol() string {
	if u == nil || u.Security == nil {
		return ""
	}
	return u.Security.Symbol()
}

// Option is an option security. Underlying may be nil for an option whose
// underlying has not been subscribed yet.
type Option struct {
	Ticker         string
	Underlying     *Underlying
	Right          Right
	Strike         float64
	Expiry         time.Time
	Style          Style
	SettlementDays int
}

func (o *Option) Symbol() string { return o.Ticker }
func (o *Option) Kind() Kind     { return KindOption }
func (*Option) sealed()          {}

// NewOption builds an option with the default settlement lag and an OCC
// symbol derived from its terms.
func NewOption(underlying *Underlying, right Right, strike float64, expiry time.Time, style Style) *Option {
	return &Option{
		Ticker:         OptionSymbol(underlying.Symbol(), expiry, right, strike),
		Underlying:     underlying,
		Right:          right,
		Strike:         strike,
		Expiry:         expiry,
		Style:          style,
		SettlementDays: DefaultSettlementDays,
	}
}

// OptionContract is a quoted contract as seen at a point in time. Time is
// the trade timestamp and anchors settlement date computation.
type OptionContract struct {
	Symbol           string
	UnderlyingSymbol string
	Right            Right
	Strike           float64
	Expiry           time.Time
	Time             time.Time
}

// ContractFor returns the contract view of an option at the given trade time.
func ContractFor(o *Option, at time.Time) OptionContract {
	return OptionContract{
		Symbol:           o.Ticker,
		UnderlyingSymbol: o.Underlying.Symbol(),
		Right:            o.Right,
		Strike:           o.Strike,
		Expiry:           o.Expiry,
		Time:             at,
	}
}

// OptionSymbol formats an OCC-like option symbol:
// O:<root><YYMMDD><C|P><strike*1000 padded to 8 digits>.
func OptionSymbol(underlying string, expiry time.Time, right Right, strike float64) string {
	expDt := expiry.Format("060102")
	cp := "C"
	if right == Put {
		cp = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, cp, strikeInt)
}
