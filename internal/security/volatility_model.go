package security

import (
	"github.com/shopspring/decimal"
)

// VolatilityModel exposes the current annualized volatility estimate of a
// security, as a fraction (0.20 for 20%). A zero value means the model has
// no estimate yet.
type VolatilityModel interface {
	Volatility() decimal.Decimal
}

// ConstantModel always reports the same estimate.
type ConstantModel struct {
	value decimal.Decimal
}

// NewConstantModel returns a model fixed at v.
func NewConstantModel(v decimal.Decimal) ConstantModel {
	return ConstantModel{value: v}
}

// NewConstantModelFromFloat is a convenience for configuration values.
func NewConstantModelFromFloat(v float64) ConstantModel {
	return ConstantModel{value: decimal.NewFromFloat(v)}
}

func (m ConstantModel) Volatility() decimal.Decimal { return m.value }

// NullModel never produces an estimate.
type NullModel struct{}

func (NullModel) Volatility() decimal.Decimal { return decimal.Zero }

// ModelOf returns the volatility model attached to u, if any.
func ModelOf(u *Underlying) (VolatilityModel, bool) {
	if u == nil || u.Model == nil {
		return nil, false
	}
	return u.Model, true
}

// VolatilityOf returns the underlying's current volatility estimate. It is
// absent when the underlying or its model is missing, or when the model
// reports a value that is not strictly positive: a zero reading means
// "no estimate", never "zero volatility".
func VolatilityOf(u *Underlying) (decimal.Decimal, bool) {
	m, ok := ModelOf(u)
	if !ok {
		return decimal.Zero, false
	}
	v := m.Volatility()
	if !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}
