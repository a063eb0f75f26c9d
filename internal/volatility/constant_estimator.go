package volatility

import (
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/security"
)

// ConstantEstimator is the default estimator. It projects the
// underlying's own volatility estimate into a flat term structure anchored
// at the contract's settlement date. The market snapshot is not consulted.
type ConstantEstimator struct {
	conv Conventions
}

// NewConstantEstimator uses conv, filling unset fields from
// DefaultConventions.
func NewConstantEstimator(conv Conventions) *ConstantEstimator {
	return &ConstantEstimator{conv: conv.withDefaults()}
}

// Estimate implements Estimator.
func (e *ConstantEstimator) Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, bool) {
	ts, r := e.EstimateWithReason(sec, snap, contract)
	return ts, r == ReasonNone
}

// EstimateWithReason implements Explainer.
func (e *ConstantEstimator) EstimateWithReason(sec security.Security, _ *market.Snapshot, contract security.OptionContract) (TermStructure, Reason) {
	opt, r := optionOf(sec)
	if r != ReasonNone {
		return nil, r
	}
	if _, ok := security.ModelOf(opt.Underlying); !ok {
		return nil, ReasonNoModel
	}
	vol, ok := security.VolatilityOf(opt.Underlying)
	if !ok {
		return nil, ReasonNonPositive
	}

	settlement := SettlementDate(contract.Time, settlementDays(opt), e.conv.Calendar)
	ts, err := NewConstantVol(settlement, e.conv.Calendar, vol.InexactFloat64(), e.conv.DayCounter)
	if err != nil {
		return nil, ReasonInvalidVolatility
	}
	return ts, ReasonNone
}
