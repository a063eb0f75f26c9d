// Package pricing contains closed-form option pricing and the analytic
// engine that prices a contract against a volatility term structure.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/contactkeval/option-vol/internal/daycount"
)

// ErrInvalidSpot is returned when the underlying price is not positive.
var ErrInvalidSpot = errors.New("invalid spot price")

// VolatilitySource is the view of a volatility term structure the engine
// needs: a volatility per (strike, maturity) plus the anchor date and day
// counter used to turn maturities into year fractions.
type VolatilitySource interface {
	VolatilityAt(strike float64, maturity time.Time) float64
	ReferenceDate() time.Time
	DayCounter() daycount.Convention
}

// OptionSpec is the payoff the engine prices.
type OptionSpec struct {
	IsCall bool
	Strike float64
	Expiry time.Time
}

// Greeks are first and second order sensitivities. Vega and Rho are per
// 1.00 change in volatility and rate; Theta is per year.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Result is the output of one engine calculation.
type Result struct {
	Price        float64 `json:"price"`
	Volatility   float64 `json:"volatility"`
	TimeToExpiry float64 `json:"time_to_expiry"`
	Greeks       Greeks  `json:"greeks"`
}

// AnalyticEuropeanEngine prices European options in closed form. It holds
// no state and may be shared between goroutines.
type AnalyticEuropeanEngine struct{}

// NewAnalyticEuropeanEngine returns the closed-form engine.
func NewAnalyticEuropeanEngine() *AnalyticEuropeanEngine {
	return &AnalyticEuropeanEngine{}
}

// Calculate prices opt against vol.
//
// Parameters:
//   - opt: option payoff
//   - spot: underlying price
//   - rate: risk-free rate (continuously compounded)
//   - dividend: dividend yield (continuously compounded)
//   - vol: volatility term structure, queried at (strike, expiry)
//
// Time to expiry is measured with vol's day counter from its reference
// date. Options at or past expiry return intrinsic value and zero Greeks
// except delta.
func (e *AnalyticEuropeanEngine) Calculate(opt OptionSpec, spot, rate, dividend float64, vol VolatilitySource) (Result, error) {
	if spot <= 0 || math.IsNaN(spot) {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSpot, spot)
	}

	T := vol.DayCounter().YearFraction(vol.ReferenceDate(), opt.Expiry)
	sigma := vol.VolatilityAt(opt.Strike, opt.Expiry)

	res := Result{
		Volatility:   sigma,
		TimeToExpiry: T,
		Price:        BlackScholesPrice(opt.IsCall, spot, opt.Strike, T, rate, dividend, sigma),
	}
	if T <= 0 || sigma <= 0 {
		res.Greeks.Delta = intrinsicDelta(opt.IsCall, spot, opt.Strike)
		return res, nil
	}

	res.Greeks = greeks(opt.IsCall, spot, opt.Strike, T, rate, dividend, sigma)
	return res, nil
}

func greeks(isCall bool, S, K, T, r, q, sigma float64) Greeks {
	d1, d2 := d1d2(S, K, T, r, q, sigma)
	sqrtT := math.Sqrt(T)
	dfR := math.Exp(-r * T)
	dfQ := math.Exp(-q * T)
	pdfD1 := normPDF(d1)

	var g Greeks
	g.Gamma = dfQ * pdfD1 / (S * sigma * sqrtT)
	g.Vega = S * dfQ * pdfD1 * sqrtT

	decay := -S * dfQ * pdfD1 * sigma / (2 * sqrtT)
	if isCall {
		g.Delta = dfQ * normCDF(d1)
		g.Theta = decay - r*K*dfR*normCDF(d2) + q*S*dfQ*normCDF(d1)
		g.Rho = K * T * dfR * normCDF(d2)
	} else {
		g.Delta = -dfQ * normCDF(-d1)
		g.Theta = decay + r*K*dfR*normCDF(-d2) - q*S*dfQ*normCDF(-d1)
		g.Rho = -K * T * dfR * normCDF(-d2)
	}
	return g
}

func intrinsicDelta(isCall bool, S, K float64) float64 {
	switch {
	case isCall && S > K:
		return 1
	case !isCall && S < K:
		return -1
	}
	return 0
}
