package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/security"
)

const dateLayout = "2006-01-02"

// QuoteRow is one line of a quote file. Empty bid, ask, last or
// implied_vol columns read as zero.
type QuoteRow struct {
	QuoteDate       string          `csv:"quote_date"`
	Symbol          string          `csv:"symbol"`
	Underlying      string          `csv:"underlying"`
	UnderlyingPrice decimal.Decimal `csv:"underlying_price"`
	Right           string          `csv:"right"`
	Strike          decimal.Decimal `csv:"strike"`
	Expiry          string          `csv:"expiry"`
	Bid             float64         `csv:"bid"`
	Ask             float64         `csv:"ask"`
	Last            float64         `csv:"last"`
	ImpliedVol      float64         `csv:"implied_vol"`
}

// csvProvider reads <dir>/<UNDERLYING>.csv. Each file may hold several
// quote dates; Snapshot uses asOf's date when quoted, otherwise the date
// match picks one (by default the latest before asOf).
type csvProvider struct {
	dir   string
	match DateMatchType
}

// NewCSVProvider reads quote files from dir.
func NewCSVProvider(dir string) *csvProvider {
	return &csvProvider{dir: dir}
}

func (p *csvProvider) Name() string { return "csv" }

func (p *csvProvider) matchName() DateMatchType {
	if p.match == "" {
		return MatchLower
	}
	return p.match
}

func (p *csvProvider) path(underlying string) string {
	return filepath.Join(p.dir, strings.ToUpper(underlying)+".csv")
}

// Snapshot implements Provider.
func (p *csvProvider) Snapshot(ctx context.Context, underlying string, asOf time.Time) (*market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := p.load(underlying)
	if err != nil {
		return nil, err
	}

	byDate := map[time.Time][]*QuoteRow{}
	var dates []time.Time
	for _, r := range rows {
		if !strings.EqualFold(r.Underlying, underlying) {
			continue
		}
		d, err := time.Parse(dateLayout, strings.TrimSpace(r.QuoteDate))
		if err != nil {
			logger.Debugf("event=csv_skip_row reason=bad_quote_date value=%q", r.QuoteDate)
			continue
		}
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], r)
	}

	day := pickDate(calendar.DateOf(asOf), dates, p.match)
	if day.IsZero() {
		return nil, fmt.Errorf("%w: %s for %s (match %s) in %s", ErrNoData, underlying, asOf.Format(dateLayout), p.matchName(), p.path(underlying))
	}

	b := market.NewBuilder(asOf)
	spot := 0.0
	for _, r := range byDate[day] {
		if r.UnderlyingPrice.IsPositive() {
			spot = r.UnderlyingPrice.InexactFloat64()
		}
		q, ok := quoteFromRow(r)
		if !ok {
			continue
		}
		b.AddQuote(q)
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoSpot, underlying, day.Format(dateLayout))
	}
	b.SetSpot(strings.ToUpper(underlying), spot)

	logger.Debugf("event=csv_snapshot underlying=%s quote_date=%s rows=%d", underlying, day.Format(dateLayout), len(byDate[day]))
	return b.Build(), nil
}

func (p *csvProvider) load(underlying string) ([]*QuoteRow, error) {
	f, err := os.Open(p.path(underlying))
	if err != nil {
		return nil, fmt.Errorf("open quotes: %w", err)
	}
	defer f.Close()

	var rows []*QuoteRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("read quotes %s: %w", f.Name(), err)
	}
	return rows, nil
}

func quoteFromRow(r *QuoteRow) (market.OptionQuote, bool) {
	right, err := security.ParseRight(r.Right)
	if err != nil {
		logger.Debugf("event=csv_skip_row reason=bad_right value=%q", r.Right)
		return market.OptionQuote{}, false
	}
	expiry, err := time.Parse(dateLayout, strings.TrimSpace(r.Expiry))
	if err != nil {
		logger.Debugf("event=csv_skip_row reason=bad_expiry value=%q", r.Expiry)
		return market.OptionQuote{}, false
	}
	if !r.Strike.IsPositive() {
		logger.Debugf("event=csv_skip_row reason=bad_strike value=%s", r.Strike)
		return market.OptionQuote{}, false
	}

	und := strings.ToUpper(r.Underlying)
	strike := r.Strike.InexactFloat64()
	sym := strings.TrimSpace(r.Symbol)
	if sym == "" {
		sym = security.OptionSymbol(und, expiry, right, strike)
	}
	return market.OptionQuote{
		Symbol:     sym,
		Underlying: und,
		Right:      right,
		Strike:     strike,
		Expiry:     expiry,
		Bid:        r.Bid,
		Ask:        r.Ask,
		Last:       r.Last,
		ImpliedVol: r.ImpliedVol,
	}, true
}
