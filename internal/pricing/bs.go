package pricing

import (
	"errors"
	"fmt"
	"math"
)

const sqrt2Pi = 2.5066282746310002

// Typed errors returned by the implied volatility and strike solvers.
var (
	ErrInvalidExpiry = errors.New("invalid expiry")
	ErrInvalidPrice  = errors.New("invalid market price")
	ErrNotConverged  = errors.New("implied vol did not converge")
	ErrInvalidDelta  = errors.New("delta out of range")
)

// BlackScholesPrice calculates the price of a European option using the
// Black-Scholes-Merton model with a continuous dividend yield.
//
// Parameters:
//   - isCall: true for call option, false for put option
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - q: dividend yield (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price of the option. If time to expiry or volatility
//	is zero or negative, returns the intrinsic value of the option.
func BlackScholesPrice(isCall bool, S, K, T, r, q, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return intrinsic(isCall, S, K)
	}

	d1, d2 := d1d2(S, K, T, r, q, sigma)
	dfR := math.Exp(-r * T)
	dfQ := math.Exp(-q * T)

	if isCall {
		return S*dfQ*normCDF(d1) - K*dfR*normCDF(d2)
	}
	return K*dfR*normCDF(-d2) - S*dfQ*normCDF(-d1)
}

// BlackScholesVega calculates the vega of a European option: the change in
// price for a unit (1.00) change in volatility. Returns 0 if T or sigma is
// non-positive.
func BlackScholesVega(S, K, T, r, q, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(S, K, T, r, q, sigma)
	return S * math.Exp(-q*T) * normPDF(d1) * math.Sqrt(T)
}

// ImpliedVolATM solves for the volatility that reprices an at-the-money
// straddle, using Newton-Raphson on the sum of call and put prices.
//
// Returns the implied volatility, or an error if the inputs are invalid or
// the iteration fails to converge.
func ImpliedVolATM(S, K, T, r, q float64, callPrice, putPrice float64) (float64, error) {
	if T <= 0 {
		return 0, ErrInvalidExpiry
	}
	marketPrice := callPrice + putPrice
	if callPrice <= 0 || putPrice <= 0 {
		return 0, fmt.Errorf("%w: call=%.4f put=%.4f", ErrInvalidPrice, callPrice, putPrice)
	}

	// Initial guess: 20%
	sigma := 0.20

	const (
		maxIter = 100
		tol     = 1e-8
	)

	for i := 0; i < maxIter; i++ {
		price := BlackScholesPrice(true, S, K, T, r, q, sigma) + BlackScholesPrice(false, S, K, T, r, q, sigma)
		diff := price - marketPrice

		if math.Abs(diff) < tol {
			return sigma, nil
		}

		vega := 2 * BlackScholesVega(S, K, T, r, q, sigma)
		if vega < 1e-10 {
			break
		}

		sigma -= diff / vega

		// Guardrails
		if sigma <= 0 {
			sigma = 1e-4
		}
		if sigma > 5 {
			sigma = 5
		}
	}

	return 0, ErrNotConverged
}

// ImpliedVol solves for the volatility that reprices a single European
// option by bisection on [1e-4, 5]. Prices outside the no-arbitrage band
// for that range return ErrInvalidPrice.
func ImpliedVol(isCall bool, S, K, T, r, q, price float64) (float64, error) {
	if T <= 0 {
		return 0, ErrInvalidExpiry
	}

	const (
		lowVol  = 1e-4
		highVol = 5.0
		maxIter = 200
		tol     = 1e-10
	)

	lo, hi := lowVol, highVol
	pLo := BlackScholesPrice(isCall, S, K, T, r, q, lo)
	pHi := BlackScholesPrice(isCall, S, K, T, r, q, hi)
	if price < pLo || price > pHi {
		return 0, fmt.Errorf("%w: %.6f outside [%.6f, %.6f]", ErrInvalidPrice, price, pLo, pHi)
	}

	for i := 0; i < maxIter; i++ {
		mid := 0.5 * (lo + hi)
		diff := BlackScholesPrice(isCall, S, K, T, r, q, mid) - price
		if math.Abs(diff) < tol || hi-lo < tol {
			return mid, nil
		}
		if diff > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return 0, ErrNotConverged
}

func d1d2(S, K, T, r, q, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

func intrinsic(isCall bool, S, K float64) float64 {
	if isCall {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

// normPDF calculates the probability density function of the standard
// normal distribution: exp(-0.5 * x^2) / sqrt(2π)
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}

// normCDF computes the cumulative distribution function of the standard
// normal distribution. Erfc keeps precision deep in the left tail.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// Acklam's rational approximation coefficients for the normal quantile.
var (
	invCentralNum = [...]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02, 1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	invCentralDen = [...]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02, 6.680131188771972e+01, -1.328068155288572e+01, 1}
	invTailNum    = [...]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00, -2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	invTailDen    = [...]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00, 3.754408661907416e+00, 1}
)

const invTailCut = 0.02425

// horner evaluates a polynomial with coefficients from the highest degree
// down.
func horner(coef []float64, x float64) float64 {
	v := 0.0
	for _, c := range coef {
		v = v*x + c
	}
	return v
}

// NormInv is the standard normal quantile: normCDF(NormInv(p)) == p.
// Acklam's approximation is polished with one Halley step, which takes
// the relative error to machine precision. It panics unless 0 < p < 1.
func NormInv(p float64) float64 {
	if !(p > 0 && p < 1) {
		panic("NormInv: p must be in (0,1)")
	}

	var x float64
	switch {
	case p < invTailCut:
		q := math.Sqrt(-2 * math.Log(p))
		x = horner(invTailNum[:], q) / horner(invTailDen[:], q)
	case p > 1-invTailCut:
		q := math.Sqrt(-2 * math.Log(1-p))
		x = -horner(invTailNum[:], q) / horner(invTailDen[:], q)
	default:
		q := p - 0.5
		r := q * q
		x = q * horner(invCentralNum[:], r) / horner(invCentralDen[:], r)
	}

	e := normCDF(x) - p
	u := e / normPDF(x)
	return x - u/(1+x*u/2)
}

// StrikeFromDelta returns the strike whose Black-Scholes-Merton delta is
// delta at volatility sigma and time t. Call deltas lie in (0, e^{-qt}),
// put deltas in (-e^{-qt}, 0).
func StrikeFromDelta(isCall bool, S, t, r, q, sigma, delta float64) (float64, error) {
	if t <= 0 {
		return 0, ErrInvalidExpiry
	}
	if S <= 0 || sigma <= 0 {
		return 0, fmt.Errorf("%w: spot=%v sigma=%v", ErrInvalidSpot, S, sigma)
	}
	df := math.Exp(q * t)
	p := delta * df
	if !isCall {
		p = 1 + delta*df
	}
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDelta, delta)
	}
	sqrtT := math.Sqrt(t)
	d1 := NormInv(p)
	return S * math.Exp(-d1*sigma*sqrtT+(r-q+0.5*sigma*sigma)*t), nil
}
