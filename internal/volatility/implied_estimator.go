package volatility

import (
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pricing"
	"github.com/contactkeval/option-vol/internal/security"
)

// ImpliedEstimator backs out a flat volatility from the at-the-money
// straddle quoted at the listed expiry nearest the contract's.
type ImpliedEstimator struct {
	conv     Conventions
	rate     float64
	dividend float64
}

// NewImpliedEstimator uses conv (defaults filled in) and the given
// continuously compounded rate and dividend yield.
func NewImpliedEstimator(conv Conventions, rate, dividend float64) *ImpliedEstimator {
	return &ImpliedEstimator{conv: conv.withDefaults(), rate: rate, dividend: dividend}
}

// Estimate implements Estimator.
func (e *ImpliedEstimator) Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, bool) {
	ts, r := e.EstimateWithReason(sec, snap, contract)
	return ts, r == ReasonNone
}

// EstimateWithReason implements Explainer.
func (e *ImpliedEstimator) EstimateWithReason(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, Reason) {
	opt, r := optionOf(sec)
	if r != ReasonNone {
		return nil, r
	}
	und := opt.Underlying.Symbol()
	spot, ok := snap.Spot(und)
	if !ok {
		return nil, ReasonNoMarketData
	}
	expiry, ok := snap.NearestExpiry(und, contract.Expiry)
	if !ok {
		return nil, ReasonNoMarketData
	}
	call, put, ok := snap.ATMPair(und, expiry, spot)
	if !ok {
		return nil, ReasonNoMarketData
	}

	settlement := SettlementDate(contract.Time, settlementDays(opt), e.conv.Calendar)
	T := e.conv.DayCounter.YearFraction(settlement, expiry)
	if T <= 0 {
		return nil, ReasonNoMarketData
	}

	iv, err := pricing.ImpliedVolATM(spot, call.Strike, T, e.rate, e.dividend, call.Mid(), put.Mid())
	if err != nil || iv <= 0 {
		return nil, ReasonNotConverged
	}

	ts, err := NewConstantVol(settlement, e.conv.Calendar, iv, e.conv.DayCounter)
	if err != nil {
		return nil, ReasonNotConverged
	}
	return ts, ReasonNone
}
