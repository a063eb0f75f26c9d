package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/data"
	"github.com/contactkeval/option-vol/internal/volatility"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "SPY", cfg.Underlying)
	assert.Equal(t, 1, *cfg.SettlementDays)

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, volatility.KindConstant, pc.Estimator.Kind)
	assert.Equal(t, calendar.UnitedStatesNYSE, pc.Estimator.Conventions.Calendar)
	assert.Equal(t, "ACT/365F", pc.Estimator.Conventions.DayCounter.Name())
	assert.Equal(t, 1, pc.SettlementDays)
	require.NotNil(t, pc.Model)
	assert.True(t, pc.Model.Volatility().Equal(decimal.RequireFromString("0.2")))
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "run.yaml", `
underlying: qqq
as_of: 2025-01-02T15:00:00Z
underlying_volatility: 0.37
risk_free_rate: 0.045
settlement_days: 0
expiries: [2025-01-17, 2025-02-21]
estimator:
  kind: implied
  calendar: US-SETTLEMENT
  day_counter: ACT/360
  shock: vol + 0.01
provider:
  kind: csv
  dir: ./quotes
  date_match: nearest
  fallback: synthetic
concurrency: 4
timeout: 5s
verbosity: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "QQQ", cfg.Underlying)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	asOf, err := cfg.AsOfTime(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC), asOf)

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, "QQQ", pc.Underlying)
	assert.Equal(t, volatility.KindImplied, pc.Estimator.Kind)
	assert.Equal(t, calendar.UnitedStatesSettlement, pc.Estimator.Conventions.Calendar)
	assert.Equal(t, "ACT/360", pc.Estimator.Conventions.DayCounter.Name())
	assert.Equal(t, "vol + 0.01", pc.Estimator.Shock)
	assert.Equal(t, 0.045, pc.Estimator.RiskFreeRate)
	assert.Equal(t, 0, pc.SettlementDays)
	assert.Equal(t, 4, pc.Concurrency)
	assert.Len(t, pc.Expiries, 2)
	assert.True(t, pc.Model.Volatility().Equal(decimal.RequireFromString("0.37")))

	prov, err := cfg.DataProvider()
	require.NoError(t, err)
	assert.Equal(t, "csv+synthetic", prov.Name())
	assert.Equal(t, data.MatchNearest, cfg.providerOptions("csv").DateMatch)
}

func TestZeroVolatilityAttachesNoModel(t *testing.T) {
	cfg := Default()
	cfg.UnderlyingVolatility = decimal.Zero
	assert.Nil(t, cfg.Model())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "bogus: 1\n",
		"estimator":       "estimator: {kind: garch}\n",
		"calendar":        "estimator: {calendar: TARGET}\n",
		"day counter":     "estimator: {day_counter: BUS/252}\n",
		"shock":           "estimator: {shock: 'vol +'}\n",
		"as_of":           "as_of: yesterday\n",
		"expiry":          "expiries: [soon]\n",
		"negative vol":    "underlying_volatility: -0.1\n",
		"settlement days": "settlement_days: -1\n",
		"verbosity":       "verbosity: 9\n",
		"fallback":        "provider: {fallback: ftp}\n",
		"date match":      "provider: {date_match: closest}\n",
		"underlying":      "underlying: ''\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MASSIVE_API_KEY", "")
	require.NoError(t, os.Unsetenv("MASSIVE_API_KEY"))
	path := writeFile(t, ".env", "MASSIVE_API_KEY=from-file\n")

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("MASSIVE_API_KEY"))

	cfg := Default()
	cfg.Provider.Kind = "massive"
	prov, err := cfg.DataProvider()
	require.NoError(t, err)
	assert.Equal(t, "massive", prov.Name())
}
