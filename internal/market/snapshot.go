// Package market holds point-in-time market data snapshots consulted by
// volatility estimators and the pricing engine.
//
// A Snapshot is assembled once by a Builder and read-only afterwards, so a
// single snapshot can be shared by concurrent pricing goroutines.
package market

import (
	"math"
	"sort"
	"time"

	"github.com/contactkeval/option-vol/internal/security"
)

// UnderlyingQuote is the last known price of an underlying.
type UnderlyingQuote struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// OptionQuote is a single option quote within a chain. ImpliedVol is zero
// when the source did not supply one.
type OptionQuote struct {
	Symbol     string
	Underlying string
	Right      security.Right
	Strike     float64
	Expiry     time.Time
	Bid        float64
	Ask        float64
	Last       float64
	ImpliedVol float64
}

// Mid returns the bid/ask midpoint, falling back to the last trade when
// one side of the book is missing.
func (q OptionQuote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// Contract returns the contract view of the quote at trade time at.
func (q OptionQuote) Contract(at time.Time) security.OptionContract {
	return security.OptionContract{
		Symbol:           q.Symbol,
		UnderlyingSymbol: q.Underlying,
		Right:            q.Right,
		Strike:           q.Strike,
		Expiry:           q.Expiry,
		Time:             at,
	}
}

// Snapshot is a read-only bundle of market data at Time.
type Snapshot struct {
	Time        time.Time
	underlyings map[string]UnderlyingQuote
	chains      map[string][]OptionQuote
}

// Spot returns the underlying price for symbol.
func (s *Snapshot) Spot(symbol string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	q, ok := s.underlyings[symbol]
	if !ok || q.Price <= 0 {
		return 0, false
	}
	return q.Price, true
}

// Underlyings returns the underlying symbols present, sorted.
func (s *Snapshot) Underlyings() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.underlyings))
	for sym := range s.underlyings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Chain returns the option quotes for an underlying ordered by expiry,
// strike, then right. The returned slice must not be modified.
func (s *Snapshot) Chain(underlying string) []OptionQuote {
	if s == nil {
		return nil
	}
	return s.chains[underlying]
}

// Quote finds an option quote by symbol.
func (s *Snapshot) Quote(underlying, symbol string) (OptionQuote, bool) {
	for _, q := range s.Chain(underlying) {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return OptionQuote{}, false
}

// Expiries lists the distinct expiries of an underlying's chain, ascending.
func (s *Snapshot) Expiries(underlying string) []time.Time {
	var out []time.Time
	for _, q := range s.Chain(underlying) {
		if len(out) == 0 || !out[len(out)-1].Equal(q.Expiry) {
			out = append(out, q.Expiry)
		}
	}
	return out
}

// NearestExpiry returns the listed expiry closest to target. Ties go to
// the earlier expiry.
func (s *Snapshot) NearestExpiry(underlying string, target time.Time) (time.Time, bool) {
	expiries := s.Expiries(underlying)
	if len(expiries) == 0 {
		return time.Time{}, false
	}
	best := expiries[0]
	for _, e := range expiries[1:] {
		if absDuration(e.Sub(target)) < absDuration(best.Sub(target)) {
			best = e
		}
	}
	return best, true
}

// ATMPair returns the call and put quoted at the strike nearest spot for
// the given expiry. Both legs must have a usable mid price.
func (s *Snapshot) ATMPair(underlying string, expiry time.Time, spot float64) (call, put OptionQuote, ok bool) {
	calls := map[float64]OptionQuote{}
	puts := map[float64]OptionQuote{}
	for _, q := range s.Chain(underlying) {
		if !q.Expiry.Equal(expiry) || q.Mid() <= 0 {
			continue
		}
		if q.Right == security.Call {
			calls[q.Strike] = q
		} else {
			puts[q.Strike] = q
		}
	}

	bestDist := math.Inf(1)
	for k, c := range calls {
		p, found := puts[k]
		if !found {
			continue
		}
		d := math.Abs(k - spot)
		if d < bestDist || (d == bestDist && k < call.Strike) {
			bestDist, call, put, ok = d, c, p, true
		}
	}
	return call, put, ok
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
