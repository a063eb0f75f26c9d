// Package pipeline prices an underlying's option chain with the volatility
// estimator chosen at configuration time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-vol/internal/data"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pricing"
	"github.com/contactkeval/option-vol/internal/security"
	"github.com/contactkeval/option-vol/internal/volatility"
)

// ErrNoUnderlying is returned when Config.Underlying is empty.
var ErrNoUnderlying = errors.New("no underlying configured")

// Config struct
type Config struct {
	Underlying     string                   // e.g. "SPY"
	Estimator      volatility.Config        // strategy selected once, shared by every contract
	Model          security.VolatilityModel // underlying's volatility model; nil means none attached
	SettlementDays int                      // trade-to-settlement lag in business days
	Concurrency    int                      // pricing workers, 0 = GOMAXPROCS
	Expiries       []time.Time              // restrict pricing to these expiries, empty = all
}

// Row is one priced (or skipped) contract.
type Row struct {
	Symbol        string    `json:"symbol"`
	Underlying    string    `json:"underlying"`
	Right         string    `json:"right"`
	Strike        float64   `json:"strike"`
	Expiry        time.Time `json:"expiry"`
	Spot          float64   `json:"spot"`
	MarketMid     float64   `json:"market_mid"`
	ReferenceDate time.Time `json:"reference_date"`
	TimeToExpiry  float64   `json:"time_to_expiry"`
	Volatility    float64   `json:"volatility"`
	Price         float64   `json:"price"`
	Delta         float64   `json:"delta"`
	Gamma         float64   `json:"gamma"`
	Vega          float64   `json:"vega"`
	Theta         float64   `json:"theta"`
	Rho           float64   `json:"rho"`
	Skipped       bool      `json:"skipped"`
	Reason        string    `json:"reason,omitempty"`
}

// Result is the output of one Run.
type Result struct {
	Underlying string    `json:"underlying"`
	AsOf       time.Time `json:"as_of"`
	Spot       float64   `json:"spot"`
	Estimator  string    `json:"estimator"`
	Priced     int       `json:"priced"`
	Skipped    int       `json:"skipped"`
	Rows       []Row     `json:"rows"`
}

// Pipeline holds one estimator and one pricing engine. It is safe for
// concurrent use once built.
type Pipeline struct {
	cfg    Config
	est    volatility.Estimator
	engine *pricing.AnalyticEuropeanEngine
	prov   data.Provider
}

// New builds the configured estimator and binds the pipeline to prov.
func New(cfg Config, prov data.Provider) (*Pipeline, error) {
	if strings.TrimSpace(cfg.Underlying) == "" {
		return nil, ErrNoUnderlying
	}
	cfg.Underlying = strings.ToUpper(strings.TrimSpace(cfg.Underlying))
	if cfg.Estimator.Kind == "" {
		cfg.Estimator.Kind = volatility.KindConstant
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}

	est, err := volatility.New(cfg.Estimator)
	if err != nil {
		return nil, fmt.Errorf("build estimator: %w", err)
	}
	logger.Debugf("event=pipeline_ready underlying=%s estimator=%s shock=%q workers=%d",
		cfg.Underlying, cfg.Estimator.Kind, cfg.Estimator.Shock, cfg.Concurrency)
	return &Pipeline{cfg: cfg, est: est, engine: pricing.NewAnalyticEuropeanEngine(), prov: prov}, nil
}

// Underlying returns the configured underlying with its volatility model.
func (p *Pipeline) Underlying() *security.Underlying {
	return &security.Underlying{Security: &security.Equity{Ticker: p.cfg.Underlying}, Model: p.cfg.Model}
}

// Option builds the option security for a quote on the configured
// underlying.
func (p *Pipeline) Option(q market.OptionQuote) *security.Option {
	sym := q.Symbol
	if sym == "" {
		sym = security.OptionSymbol(p.cfg.Underlying, q.Expiry, q.Right, q.Strike)
	}
	return &security.Option{
		Ticker:         sym,
		Underlying:     p.Underlying(),
		Right:          q.Right,
		Strike:         q.Strike,
		Expiry:         q.Expiry,
		Style:          security.European,
		SettlementDays: p.cfg.SettlementDays,
	}
}

// Estimate runs the configured estimator for one contract and reports why
// the estimate is unavailable when it is.
func (p *Pipeline) Estimate(sec security.Security, snap *market.Snapshot, contract security.OptionContract) (volatility.TermStructure, volatility.Reason) {
	return volatility.Diagnose(p.est, sec, snap, contract)
}

// Snapshot fetches market data for the configured underlying.
func (p *Pipeline) Snapshot(ctx context.Context, asOf time.Time) (*market.Snapshot, error) {
	if p.prov == nil {
		return nil, fmt.Errorf("%w: no provider configured", data.ErrNoData)
	}
	snap, err := p.prov.Snapshot(ctx, p.cfg.Underlying, asOf)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s from %s: %w", p.cfg.Underlying, p.prov.Name(), err)
	}
	return snap, nil
}

// Run fetches a snapshot at asOf and prices every quoted contract.
func (p *Pipeline) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	snap, err := p.Snapshot(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return p.PriceSnapshot(ctx, snap)
}

// PriceSnapshot prices every quote of the configured underlying in snap.
// Contracts without a volatility estimate become skipped rows; they are
// never priced at zero volatility. Rows are sorted by symbol.
func (p *Pipeline) PriceSnapshot(ctx context.Context, snap *market.Snapshot) (*Result, error) {
	spot, ok := snap.Spot(p.cfg.Underlying)
	if !ok {
		return nil, p.noSpot(snap)
	}

	quotes := p.filter(snap.Chain(p.cfg.Underlying))
	rows := make([]Row, len(quotes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, q := range quotes {
		if gctx.Err() != nil {
			break
		}
		i, q := i, q
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := p.priceQuote(snap, spot, q)
			if err != nil {
				return fmt.Errorf("price %s: %w", q.Symbol, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	res := &Result{
		Underlying: p.cfg.Underlying,
		AsOf:       snap.Time,
		Spot:       spot,
		Estimator:  p.Describe(),
		Rows:       rows,
	}
	for _, r := range rows {
		if r.Skipped {
			res.Skipped++
		} else {
			res.Priced++
		}
	}
	logger.Infof("event=pipeline_done underlying=%s priced=%d skipped=%d", res.Underlying, res.Priced, res.Skipped)
	return res, nil
}

// PriceQuote prices a single quote against snap.
func (p *Pipeline) PriceQuote(snap *market.Snapshot, q market.OptionQuote) (Row, error) {
	spot, ok := snap.Spot(p.cfg.Underlying)
	if !ok {
		return Row{}, p.noSpot(snap)
	}
	return p.priceQuote(snap, spot, q)
}

func (p *Pipeline) priceQuote(snap *market.Snapshot, spot float64, q market.OptionQuote) (Row, error) {
	opt := p.Option(q)
	row := Row{
		Symbol:     opt.Ticker,
		Underlying: p.cfg.Underlying,
		Right:      string(q.Right),
		Strike:     q.Strike,
		Expiry:     q.Expiry,
		Spot:       spot,
		MarketMid:  q.Mid(),
	}

	ts, reason := p.Estimate(opt, snap, security.ContractFor(opt, snap.Time))
	if reason != volatility.ReasonNone {
		logger.Debugf("event=estimate_unavailable symbol=%s reason=%s", row.Symbol, reason)
		row.Skipped = true
		row.Reason = reason.String()
		return row, nil
	}

	res, err := p.engine.Calculate(
		pricing.OptionSpec{IsCall: q.Right == security.Call, Strike: q.Strike, Expiry: q.Expiry},
		spot,
		p.cfg.Estimator.RiskFreeRate,
		p.cfg.Estimator.DividendYield,
		ts,
	)
	if err != nil {
		return Row{}, err
	}

	row.ReferenceDate = ts.ReferenceDate()
	row.TimeToExpiry = res.TimeToExpiry
	row.Volatility = res.Volatility
	row.Price = res.Price
	row.Delta = res.Greeks.Delta
	row.Gamma = res.Greeks.Gamma
	row.Vega = res.Greeks.Vega
	row.Theta = res.Greeks.Theta
	row.Rho = res.Greeks.Rho
	logger.Tracef("event=priced symbol=%s vol=%.6f price=%.4f", row.Symbol, row.Volatility, row.Price)
	return row, nil
}

func (p *Pipeline) noSpot(snap *market.Snapshot) error {
	return fmt.Errorf("%w: %s (snapshot has %v)", data.ErrNoSpot, p.cfg.Underlying, snap.Underlyings())
}

func (p *Pipeline) filter(chain []market.OptionQuote) []market.OptionQuote {
	if len(p.cfg.Expiries) == 0 {
		return chain
	}
	keep := make(map[string]bool, len(p.cfg.Expiries))
	for _, e := range p.cfg.Expiries {
		keep[e.Format("2006-01-02")] = true
	}
	out := make([]market.OptionQuote, 0, len(chain))
	for _, q := range chain {
		if keep[q.Expiry.Format("2006-01-02")] {
			out = append(out, q)
		}
	}
	return out
}

// Describe names the estimator, with its shock expression when one is set.
func (p *Pipeline) Describe() string {
	if p.cfg.Estimator.Shock != "" {
		return fmt.Sprintf("%s[%s]", p.cfg.Estimator.Kind, p.cfg.Estimator.Shock)
	}
	return string(p.cfg.Estimator.Kind)
}
