package volatility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/security"
)

// ErrUnknownEstimator is returned by New and ParseKind for unsupported kinds.
var ErrUnknownEstimator = errors.New("unknown volatility estimator")

// Estimator produces the volatility term structure used to price one
// option contract.
//
// A false result means no usable estimate exists right now. Callers skip
// or defer pricing the contract; they must never substitute zero
// volatility. Implementations do not modify their arguments and are safe
// for concurrent use.
type Estimator interface {
	Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, bool)
}

// Reason explains why an estimate is unavailable.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotOption
	ReasonNoUnderlying
	ReasonNoModel
	ReasonNonPositive
	ReasonNoMarketData
	ReasonNotConverged
	ReasonInvalidVolatility // positive but not representable, e.g. overflows float64
	ReasonUnknown
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotOption:
		return "not_option"
	case ReasonNoUnderlying:
		return "no_underlying"
	case ReasonNoModel:
		return "no_volatility_model"
	case ReasonNonPositive:
		return "non_positive_volatility"
	case ReasonNoMarketData:
		return "no_market_data"
	case ReasonNotConverged:
		return "not_converged"
	case ReasonInvalidVolatility:
		return "invalid_volatility"
	}
	return "unknown"
}

// Explainer is implemented by estimators that can say why an estimate is
// unavailable.
type Explainer interface {
	EstimateWithReason(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, Reason)
}

// Diagnose runs e and reports a reason alongside the result. Estimators
// that do not implement Explainer report ReasonUnknown when unavailable.
func Diagnose(e Estimator, sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, Reason) {
	if x, ok := e.(Explainer); ok {
		return x.EstimateWithReason(sec, snap, contract)
	}
	ts, ok := e.Estimate(sec, snap, contract)
	if !ok {
		return nil, ReasonUnknown
	}
	return ts, ReasonNone
}

// Kind selects an estimator strategy at configuration time.
type Kind string

const (
	KindConstant Kind = "constant"
	KindImplied  Kind = "implied"
	KindSurface  Kind = "surface"
)

// ParseKind resolves a configuration string. Empty selects KindConstant.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindConstant, nil
	case KindConstant, KindImplied, KindSurface:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEstimator, s)
}

// Config describes the estimator the pricing pipeline holds.
type Config struct {
	Kind          Kind
	Conventions   Conventions
	RiskFreeRate  float64
	DividendYield float64
	// Shock, when set, wraps the estimator in a scenario shock.
	Shock string
}

// New builds the configured estimator.
func New(cfg Config) (Estimator, error) {
	var est Estimator
	switch cfg.Kind {
	case "", KindConstant:
		est = NewConstantEstimator(cfg.Conventions)
	case KindImplied:
		est = NewImpliedEstimator(cfg.Conventions, cfg.RiskFreeRate, cfg.DividendYield)
	case KindSurface:
		est = NewSurfaceEstimator(cfg.Conventions, cfg.RiskFreeRate, cfg.DividendYield)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEstimator, cfg.Kind)
	}

	if strings.TrimSpace(cfg.Shock) == "" {
		return est, nil
	}
	shock, err := ParseShock(cfg.Shock)
	if err != nil {
		return nil, err
	}
	return NewShockedEstimator(est, shock), nil
}

// optionOf matches the option variant of sec and checks it references an
// underlying.
func optionOf(sec security.Security) (*security.Option, Reason) {
	switch s := sec.(type) {
	case *security.Option:
		if s == nil {
			return nil, ReasonNotOption
		}
		if s.Underlying == nil || s.Underlying.Security == nil {
			return nil, ReasonNoUnderlying
		}
		return s, ReasonNone
	default:
		return nil, ReasonNotOption
	}
}

// settlementDays falls back to the listed-option default for negative
// values, so settlement never precedes the trade date.
func settlementDays(o *security.Option) int {
	if o.SettlementDays < 0 {
		return security.DefaultSettlementDays
	}
	return o.SettlementDays
}
