// This file contains the Massive (formerly Polygon) REST provider. It
// reads the option chain snapshot through the Massive SDK and falls back
// to daily aggregates for the underlying price when the chain does not
// carry it.
//
// Design notes:
//   - The SDK iterators follow next_url pagination
//   - Per-minute rate limits (HTTP 429) restart the listing after the
//     next minute boundary
//   - Logging is verbose at Debug/Trace levels for diagnostics

package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	massive "github.com/massive-com/client-go/v2/rest"
	"github.com/massive-com/client-go/v2/rest/models"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/security"
)

const (
	massiveBaseURL  = "https://api.massive.com"
	massivePageSize = 250
)

// massiveProvider implements Provider using the Massive REST SDK.
type massiveProvider struct {
	// Client is the SDK client; its HTTP field carries the base URL.
	Client *massive.Client

	// wait blocks until the rate limit window resets.
	wait func(ctx context.Context) error
}

// NewMassiveProvider constructs a Massive-backed provider with a timeout
// long enough for paginated chain reads.
func NewMassiveProvider(apiKey string) *massiveProvider {
	logger.Infof("initializing Massive data provider")

	c := massive.New(apiKey)
	c.HTTP.SetBaseURL(massiveBaseURL)
	c.HTTP.SetTimeout(60 * time.Second)
	return &massiveProvider{Client: c, wait: waitForNextMinute}
}

// SetBaseURL points the SDK client at another endpoint, e.g. a proxy.
func (p *massiveProvider) SetBaseURL(baseURL string) {
	p.Client.HTTP.SetBaseURL(strings.TrimRight(baseURL, "/"))
}

func (p *massiveProvider) Name() string { return "massive" }

// Snapshot implements Provider. The chain is filtered to expiries on or
// after asOf's date.
func (p *massiveProvider) Snapshot(ctx context.Context, underlying string, asOf time.Time) (*market.Snapshot, error) {
	und := strings.ToUpper(underlying)
	logger.Debugf("event=massive_snapshot underlying=%s as_of=%s", und, asOf.Format(time.RFC3339))

	params := models.ListOptionsChainParams{UnderlyingAsset: und}.
		WithExpirationDate(models.GTE, models.Date(calendar.DateOf(asOf))).
		WithLimit(massivePageSize)

	var (
		quotes []market.OptionQuote
		spot   float64
	)
	err := p.withRateLimit(ctx, func() error {
		quotes, spot = quotes[:0], 0
		iter := p.Client.ListOptionsChainSnapshot(ctx, params)
		for iter.Next() {
			item := iter.Item()
			if item.UnderlyingAsset.Price > 0 {
				spot = item.UnderlyingAsset.Price
			}
			q, ok := quoteFromSnapshot(und, item)
			if !ok {
				continue
			}
			quotes = append(quotes, q)
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("option chain %s: %w", und, err)
	}

	if spot <= 0 {
		logger.Debugf("event=massive_spot_fallback underlying=%s", und)
		spot, err = p.closeOnOrBefore(ctx, und, asOf)
		if err != nil {
			return nil, err
		}
	}

	b := market.NewBuilder(asOf).SetSpot(und, spot)
	for _, q := range quotes {
		b.AddQuote(q)
	}

	logger.WithFields(map[string]interface{}{
		"underlying": und,
		"quotes":     len(quotes),
		"spot":       spot,
	}).Debug("event=massive_snapshot_done")
	return b.Build(), nil
}

func quoteFromSnapshot(und string, s models.OptionContractSnapshot) (market.OptionQuote, bool) {
	right, err := security.ParseRight(s.Details.ContractType)
	if err != nil {
		logger.Tracef("event=massive_skip reason=bad_right value=%q", s.Details.ContractType)
		return market.OptionQuote{}, false
	}
	expiry := calendar.DateOf(time.Time(s.Details.ExpirationDate))
	if expiry.Year() <= 1 || s.Details.StrikePrice <= 0 {
		logger.Tracef("event=massive_skip reason=bad_contract ticker=%s", s.Details.Ticker)
		return market.OptionQuote{}, false
	}
	last := s.LastTrade.Price
	if last <= 0 {
		last = s.Day.Close
	}
	sym := s.Details.Ticker
	if sym == "" {
		sym = security.OptionSymbol(und, expiry, right, s.Details.StrikePrice)
	}
	return market.OptionQuote{
		Symbol:     sym,
		Underlying: und,
		Right:      right,
		Strike:     s.Details.StrikePrice,
		Expiry:     expiry,
		Bid:        s.LastQuote.Bid,
		Ask:        s.LastQuote.Ask,
		Last:       last,
		ImpliedVol: s.ImpliedVolatility,
	}, true
}

// closeOnOrBefore returns the last daily close not after asOf, looking
// back up to ten calendar days to cover weekends and holidays.
func (p *massiveProvider) closeOnOrBefore(ctx context.Context, underlying string, asOf time.Time) (float64, error) {
	to := calendar.DateOf(asOf)
	bars, err := p.bars(ctx, underlying, to.AddDate(0, 0, -10), to)
	if err != nil {
		return 0, err
	}
	dates := make([]time.Time, len(bars))
	byDate := make(map[time.Time]Bar, len(bars))
	for i, bar := range bars {
		d := calendar.DateOf(bar.Date)
		dates[i] = d
		byDate[d] = bar
	}
	d := onOrBefore(to, dates)
	if d.IsZero() {
		return 0, fmt.Errorf("%w: %s on or before %s", ErrNoSpot, underlying, to.Format(dateLayout))
	}
	return byDate[d].Close, nil
}

// bars retrieves daily OHLCV bars for the given symbol and date range.
func (p *massiveProvider) bars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	params := models.ListAggsParams{
		Ticker:     underlying,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(fromDate),
		To:         models.Millis(toDate),
	}.WithOrder(models.Asc).WithAdjusted(true)

	var out []Bar
	err := p.withRateLimit(ctx, func() error {
		out = out[:0]
		iter := p.Client.ListAggs(ctx, params)
		for iter.Next() {
			a := iter.Item()
			out = append(out, Bar{
				Date:  time.Time(a.Timestamp).UTC(),
				Open:  a.Open,
				High:  a.High,
				Low:   a.Low,
				Close: a.Close,
				Vol:   a.Volume,
				Count: a.Transactions,
			})
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("daily bars %s: %w", underlying, err)
	}

	logger.Tracef("bars received: %d records", len(out))
	return out, nil
}

// withRateLimit runs list, restarting it after p.wait whenever the API
// answers 429. It stops when ctx is done.
func (p *massiveProvider) withRateLimit(ctx context.Context, list func() error) error {
	for {
		err := list()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !isRateLimited(err) {
			logger.Errorf("massive API error: %v", err)
			return err
		}

		// Handle per-minute rate limit
		logger.Infof("rate limit hit, waiting for the next window")
		if err := p.wait(ctx); err != nil {
			return err
		}
	}
}

func isRateLimited(err error) bool {
	var apiErr *models.ErrorResponse
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// waitForNextMinute sleeps until the next minute boundary or until ctx is
// done.
func waitForNextMinute(ctx context.Context) error {
	now := time.Now()
	d := time.Until(now.Truncate(time.Minute).Add(time.Minute))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
