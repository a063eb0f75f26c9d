package volatility

import (
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pricing"
	"github.com/contactkeval/option-vol/internal/security"
)

// SurfaceEstimator builds a strike/expiry Surface from the underlying's
// option chain. Quoted implied volatilities are used as-is; quotes without
// one are inverted from their mid price. Expiries on or before the
// settlement date are ignored.
type SurfaceEstimator struct {
	conv     Conventions
	rate     float64
	dividend float64
}

// NewSurfaceEstimator uses conv (defaults filled in) and the given
// continuously compounded rate and dividend yield for quote inversion.
func NewSurfaceEstimator(conv Conventions, rate, dividend float64) *SurfaceEstimator {
	return &SurfaceEstimator{conv: conv.withDefaults(), rate: rate, dividend: dividend}
}

// Estimate implements Estimator.
func (e *SurfaceEstimator) Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, bool) {
	ts, r := e.EstimateWithReason(sec, snap, contract)
	return ts, r == ReasonNone
}

// EstimateWithReason implements Explainer.
func (e *SurfaceEstimator) EstimateWithReason(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, Reason) {
	opt, r := optionOf(sec)
	if r != ReasonNone {
		return nil, r
	}
	und := opt.Underlying.Symbol()
	settlement := SettlementDate(contract.Time, settlementDays(opt), e.conv.Calendar)
	spot, hasSpot := snap.Spot(und)

	byExpiry := map[time.Time][]SmilePoint{}
	var order []time.Time
	for _, q := range snap.Chain(und) {
		exp := calendar.DateOf(q.Expiry)
		T := e.conv.DayCounter.YearFraction(settlement, exp)
		if T <= 0 {
			continue
		}
		iv := q.ImpliedVol
		if iv <= 0 && hasSpot && q.Mid() > 0 {
			solved, err := pricing.ImpliedVol(q.Right == security.Call, spot, q.Strike, T, e.rate, e.dividend, q.Mid())
			if err != nil {
				continue
			}
			iv = solved
		}
		if iv <= 0 {
			continue
		}
		if _, seen := byExpiry[exp]; !seen {
			order = append(order, exp)
		}
		byExpiry[exp] = append(byExpiry[exp], SmilePoint{Strike: q.Strike, Vol: iv})
	}
	if len(order) == 0 {
		return nil, ReasonNoMarketData
	}

	smiles := make([]Smile, 0, len(order))
	for _, exp := range order {
		smiles = append(smiles, Smile{Expiry: exp, Points: byExpiry[exp]})
	}
	ts, err := NewSurface(settlement, e.conv.Calendar, e.conv.DayCounter, smiles)
	if err != nil {
		return nil, ReasonNoMarketData
	}
	return ts, ReasonNone
}
