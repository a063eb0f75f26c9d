package volatility

import (
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/security"
)

// ShockedEstimator applies a scenario Shock to whatever its inner
// estimator produces. Unavailable estimates pass through unchanged.
type ShockedEstimator struct {
	inner Estimator
	shock *Shock
}

// NewShockedEstimator wraps inner.
func NewShockedEstimator(inner Estimator, shock *Shock) *ShockedEstimator {
	return &ShockedEstimator{inner: inner, shock: shock}
}

// Estimate implements Estimator.
func (e *ShockedEstimator) Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, bool) {
	ts, r := e.EstimateWithReason(sec, snap, contract)
	return ts, r == ReasonNone
}

// EstimateWithReason implements Explainer.
func (e *ShockedEstimator) EstimateWithReason(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (TermStructure, Reason) {
	ts, r := Diagnose(e.inner, sec, snap, contract)
	if r != ReasonNone {
		return nil, r
	}
	return NewShocked(ts, e.shock), ReasonNone
}
