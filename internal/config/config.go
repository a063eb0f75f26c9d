// Package config loads the YAML run configuration and the .env file that
// carries API keys.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/data"
	"github.com/contactkeval/option-vol/internal/daycount"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/security"
	"github.com/contactkeval/option-vol/internal/volatility"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Verbosity levels
const (
	VerbosityError = iota // 0
	VerbosityInfo         // 1
	VerbosityDebug        // 2
	VerbosityTrace        // 3
)

// Config is the on-disk run configuration.
type Config struct {
	Underlying string `yaml:"underlying"`
	// AsOf is RFC 3339 or YYYY-MM-DD; empty means now.
	AsOf string `yaml:"as_of"`

	// UnderlyingVolatility feeds the underlying's constant volatility
	// model. Zero or absent attaches no model.
	UnderlyingVolatility decimal.Decimal `yaml:"underlying_volatility"`

	RiskFreeRate   float64  `yaml:"risk_free_rate"`
	DividendYield  float64  `yaml:"dividend_yield"`
	SettlementDays *int     `yaml:"settlement_days"`
	Expiries       []string `yaml:"expiries"`

	Estimator EstimatorConfig `yaml:"estimator"`
	Provider  ProviderConfig  `yaml:"provider"`
	Server    ServerConfig    `yaml:"server"`

	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	ReportDir   string        `yaml:"report_dir"`
	Verbosity   int           `yaml:"verbosity"` // 0=errors,1=info,2=debug,3=trace
}

// EstimatorConfig selects the volatility estimator.
type EstimatorConfig struct {
	Kind       string `yaml:"kind"`        // constant, implied, surface
	Calendar   string `yaml:"calendar"`    // US-NYSE, US-SETTLEMENT, WEEKENDS
	DayCounter string `yaml:"day_counter"` // ACT/365F, ACT/360, 30E/360, ACT/ACT
	Shock      string `yaml:"shock"`       // optional govaluate expression
}

// ProviderConfig selects the market data source. API keys never live in
// the file; they come from MASSIVE_API_KEY or POLYGON_API_KEY.
type ProviderConfig struct {
	Kind      string  `yaml:"kind"` // synthetic, csv, massive
	Dir       string  `yaml:"dir"`
	DateMatch string  `yaml:"date_match"` // csv: lower (default), higher, nearest, exact
	BaseURL   string  `yaml:"base_url"`
	Seed      int64   `yaml:"seed"`
	Spot      float64 `yaml:"spot"`
	Vol       float64 `yaml:"vol"`
	Fallback  string  `yaml:"fallback"` // optional secondary provider kind
}

// ServerConfig configures the REST mode.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration that prices a synthetic SPY chain with
// the constant estimator.
func Default() *Config {
	days := security.DefaultSettlementDays
	return &Config{
		Underlying:           "SPY",
		UnderlyingVolatility: decimal.RequireFromString("0.20"),
		RiskFreeRate:         0.04,
		SettlementDays:       &days,
		Estimator: EstimatorConfig{
			Kind:       string(volatility.KindConstant),
			Calendar:   string(calendar.UnitedStatesNYSE),
			DayCounter: daycount.Actual365Fixed{}.Name(),
		},
		Provider:    ProviderConfig{Kind: "synthetic", Seed: 1},
		Server:      ServerConfig{Addr: ":8080"},
		Concurrency: 8,
		Timeout:     30 * time.Second,
		ReportDir:   "./out",
		Verbosity:   VerbosityInfo,
	}
}

// LoadEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
		logger.Debugf("event=env_loaded file=%s", f)
	}
	return nil
}

// Load reads path over the defaults and validates the result. An empty
// path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode strictly unmarshals YAML into cfg, then validates it. Unknown
// keys are rejected.
func Decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

// Validate checks every field and normalizes symbols and kinds.
func (c *Config) Validate() error {
	var errs []error
	c.Underlying = strings.ToUpper(strings.TrimSpace(c.Underlying))
	if c.Underlying == "" {
		errs = append(errs, errors.New("underlying is required"))
	}
	if _, err := c.AsOfTime(time.Now()); err != nil {
		errs = append(errs, err)
	}
	if c.UnderlyingVolatility.IsNegative() {
		errs = append(errs, fmt.Errorf("underlying_volatility must not be negative, got %s", c.UnderlyingVolatility))
	}
	if c.SettlementDays != nil && *c.SettlementDays < 0 {
		errs = append(errs, fmt.Errorf("settlement_days must not be negative, got %d", *c.SettlementDays))
	}
	if _, err := c.ExpiryDates(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.VolatilityConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.Verbosity < VerbosityError || c.Verbosity > VerbosityTrace {
		errs = append(errs, fmt.Errorf("verbosity must be between %d and %d, got %d", VerbosityError, VerbosityTrace, c.Verbosity))
	}
	if _, err := data.ParseDateMatch(c.Provider.DateMatch); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Provider.Fallback) {
	case "", "synthetic", "csv", "massive", "polygon":
	default:
		errs = append(errs, fmt.Errorf("unknown fallback provider %q", c.Provider.Fallback))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AsOfTime parses AsOf, returning now when it is empty.
func (c *Config) AsOfTime(now time.Time) (time.Time, error) {
	s := strings.TrimSpace(c.AsOf)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of %q: want RFC 3339 or YYYY-MM-DD", c.AsOf)
	}
	return t, nil
}

// ExpiryDates parses the expiry filter.
func (c *Config) ExpiryDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(c.Expiries))
	for _, s := range c.Expiries {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("expiry %q: want YYYY-MM-DD", s)
		}
		out = append(out, t)
	}
	return out, nil
}

// VolatilityConfig resolves the estimator section.
func (c *Config) VolatilityConfig() (volatility.Config, error) {
	kind, err := volatility.ParseKind(c.Estimator.Kind)
	if err != nil {
		return volatility.Config{}, err
	}
	cal, err := calendar.Parse(c.Estimator.Calendar)
	if err != nil {
		return volatility.Config{}, err
	}
	dc, err := daycount.Parse(c.Estimator.DayCounter)
	if err != nil {
		return volatility.Config{}, err
	}
	if s := strings.TrimSpace(c.Estimator.Shock); s != "" {
		if _, err := volatility.ParseShock(s); err != nil {
			return volatility.Config{}, err
		}
	}
	return volatility.Config{
		Kind:          kind,
		Conventions:   volatility.Conventions{Calendar: cal, DayCounter: dc},
		RiskFreeRate:  c.RiskFreeRate,
		DividendYield: c.DividendYield,
		Shock:         strings.TrimSpace(c.Estimator.Shock),
	}, nil
}

// Model returns the underlying's volatility model, or nil when no
// volatility is configured.
func (c *Config) Model() security.VolatilityModel {
	if c.UnderlyingVolatility.IsZero() {
		return nil
	}
	return security.NewConstantModel(c.UnderlyingVolatility)
}

// PipelineConfig assembles the pricing pipeline configuration.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	est, err := c.VolatilityConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	expiries, err := c.ExpiryDates()
	if err != nil {
		return pipeline.Config{}, err
	}
	days := security.DefaultSettlementDays
	if c.SettlementDays != nil {
		days = *c.SettlementDays
	}
	return pipeline.Config{
		Underlying:     c.Underlying,
		Estimator:      est,
		Model:          c.Model(),
		SettlementDays: days,
		Concurrency:    c.Concurrency,
		Expiries:       expiries,
	}, nil
}

// DataProvider builds the configured provider, wrapped with its fallback
// when one is set. The API key is read from the environment.
func (c *Config) DataProvider() (data.Provider, error) {
	primary, err := data.New(c.providerOptions(c.Provider.Kind))
	if err != nil {
		return nil, err
	}
	if c.Provider.Fallback == "" {
		return primary, nil
	}
	secondary, err := data.New(c.providerOptions(c.Provider.Fallback))
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return data.WithSecondary(primary, secondary), nil
}

func (c *Config) providerOptions(kind string) data.Options {
	match, _ := data.ParseDateMatch(c.Provider.DateMatch)
	return data.Options{
		Kind:      kind,
		Dir:       c.Provider.Dir,
		DateMatch: match,
		APIKey:    data.APIKeyFromEnv(),
		BaseURL:   c.Provider.BaseURL,
		Seed:      c.Provider.Seed,
		Spot:      c.Provider.Spot,
		Vol:       c.Provider.Vol,
	}
}
