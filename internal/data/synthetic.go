package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pricing"
	"github.com/contactkeval/option-vol/internal/security"
)

// Synthetic chain shape.
const (
	synthExpiries   = 3
	synthStrikes    = 11 // per expiry, centered on the ATM strike
	synthRate       = 0.04
	synthSkewPerPct = 0.002 // vol added per 1% below the ATM strike
)

// synthProvider generates a Black-Scholes consistent chain. The same seed,
// underlying and asOf always produce the same snapshot.
type synthProvider struct {
	seed int64
	spot float64
	vol  float64
}

// NewSyntheticProvider returns a generator. A non-positive spot is drawn
// from the seed; a non-positive vol defaults to 20%.
func NewSyntheticProvider(seed int64, spot, vol float64) *synthProvider {
	if vol <= 0 {
		vol = 0.20
	}
	return &synthProvider{seed: seed, spot: spot, vol: vol}
}

func (p *synthProvider) Name() string { return "synthetic" }

// Snapshot implements Provider. Expiries are the next monthly (third
// Friday) expirations after asOf, adjusted for exchange holidays.
func (p *synthProvider) Snapshot(ctx context.Context, underlying string, asOf time.Time) (*market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	und := strings.ToUpper(underlying)
	h := fnv.New32a()
	h.Write([]byte(und))
	rng := rand.New(rand.NewSource(p.seed ^ int64(h.Sum32()) ^ calendar.DateOf(asOf).Unix()))

	spot := p.spot
	if spot <= 0 {
		spot = 100.0 + float64(rng.Intn(400)) + math.Round(rng.Float64()*100)/100
	}
	ladder := strikeLadder(spot, strikeInterval(spot), synthStrikes)
	atm := Closest(ladder, spot)

	settlement := calendar.Advance(calendar.UnitedStatesNYSE, calendar.DateOf(asOf), security.DefaultSettlementDays)
	b := market.NewBuilder(asOf).SetSpot(und, spot)
	for _, exp := range monthlyExpiries(asOf, synthExpiries) {
		T := daycount.Actual365Fixed{}.YearFraction(settlement, exp)
		for _, k := range ladder {
			if k <= 0 {
				continue
			}
			sigma := p.vol + synthSkewPerPct*math.Max(0, (atm-k)/atm*100)
			for _, right := range []security.Right{security.Call, security.Put} {
				fair := pricing.BlackScholesPrice(right == security.Call, spot, k, T, synthRate, 0, sigma)
				half := math.Max(0.01, fair*0.01*rng.Float64())
				b.AddQuote(market.OptionQuote{
					Symbol:     security.OptionSymbol(und, exp, right, k),
					Underlying: und,
					Right:      right,
					Strike:     k,
					Expiry:     exp,
					Bid:        math.Max(0, roundCents(fair-half)),
					Ask:        roundCents(fair + half),
					Last:       roundCents(fair),
				})
			}
		}
	}
	return b.Build(), nil
}

func strikeLadder(spot, interval float64, n int) []float64 {
	base := math.Round(spot/interval) * interval
	out := make([]float64, 0, n)
	for i := -n / 2; i <= n/2; i++ {
		out = append(out, base+float64(i)*interval)
	}
	return out
}

// strikeInterval mirrors common listed strike spacing by price level.
func strikeInterval(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 200:
		return 1
	case spot < 1000:
		return 5
	}
	return 25
}

// monthlyExpiries returns the next n third-Friday expirations strictly
// after asOf's date. A holiday Friday moves to the preceding business day.
func monthlyExpiries(asOf time.Time, n int) []time.Time {
	day := calendar.DateOf(asOf)
	out := make([]time.Time, 0, n)
	for m := 0; len(out) < n; m++ {
		first := time.Date(day.Year(), day.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
		exp := first.AddDate(0, 0, offset+14)
		if calendar.IsHoliday(calendar.UnitedStatesNYSE, exp) {
			exp = calendar.Advance(calendar.UnitedStatesNYSE, exp, -1)
		}
		if exp.After(day) {
			out = append(out, exp)
		}
	}
	return out
}

func roundCents(x float64) float64 { return math.Round(x*100) / 100 }
