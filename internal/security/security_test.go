package security

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionSymbol(t *testing.T) {
	expiry := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "O:SPY250117C00581000", OptionSymbol("spy", expiry, Call, 581))
	assert.Equal(t, "O:SPY250117P00582500", OptionSymbol("SPY", expiry, Put, 582.5))
}

func TestNewOptionDefaults(t *testing.T) {
	u := &Underlying{Security: &Equity{Ticker: "AAPL"}}
	expiry := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	opt := NewOption(u, Put, 150, expiry, American)

	assert.Equal(t, KindOption, opt.Kind())
	assert.Equal(t, DefaultSettlementDays, opt.SettlementDays)
	assert.Equal(t, "O:AAPL250620P00150000", opt.Symbol())

	at := time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC)
	c := ContractFor(opt, at)
	assert.Equal(t, "AAPL", c.UnderlyingSymbol)
	assert.Equal(t, at, c.Time)
	assert.Equal(t, 150.0, c.Strike)
}

func TestVolatilityOf(t *testing.T) {
	tests := []struct {
		name string
		u    *Underlying
		want decimal.Decimal
		ok   bool
	}{
		{"nil underlying", nil, decimal.Zero, false},
		{"no model", &Underlying{Security: &Equity{Ticker: "SPY"}}, decimal.Zero, false},
		{"null model", &Underlying{Security: &Equity{Ticker: "SPY"}, Model: NullModel{}}, decimal.Zero, false},
		{"negative", &Underlying{Security: &Equity{Ticker: "SPY"}, Model: NewConstantModelFromFloat(-0.1)}, decimal.Zero, false},
		{"positive", &Underlying{Security: &Equity{Ticker: "SPY"}, Model: NewConstantModel(decimal.RequireFromString("0.25"))}, decimal.RequireFromString("0.25"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := VolatilityOf(tc.u)
			assert.Equal(t, tc.ok, ok)
			assert.True(t, tc.want.Equal(v), "want %s got %s", tc.want, v)
		})
	}
}

func TestParseRight(t *testing.T) {
	r, err := ParseRight("C")
	require.NoError(t, err)
	assert.Equal(t, Call, r)

	r, err = ParseRight(" Put ")
	require.NoError(t, err)
	assert.Equal(t, Put, r)

	_, err = ParseRight("straddle")
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "option", KindOption.String())
	assert.Equal(t, "index", (&Index{Ticker: "SPX"}).Kind().String())
	assert.Equal(t, "future", (&Future{Ticker: "ESZ5"}).Kind().String())
}
