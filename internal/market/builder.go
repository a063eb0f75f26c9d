package market

import (
	"sort"
	"time"
)

// Builder assembles a Snapshot. It is not safe for concurrent use; the
// Snapshot it produces is.
type Builder struct {
	at          time.Time
	underlyings map[string]UnderlyingQuote
	chains      map[string][]OptionQuote
}

// NewBuilder starts a snapshot stamped at the given time.
func NewBuilder(at time.Time) *Builder {
	return &Builder{
		at:          at,
		underlyings: map[string]UnderlyingQuote{},
		chains:      map[string][]OptionQuote{},
	}
}

// SetSpot records the underlying price. Later calls overwrite earlier ones.
func (b *Builder) SetSpot(symbol string, price float64) *Builder {
	b.underlyings[symbol] = UnderlyingQuote{Symbol: symbol, Price: price, Time: b.at}
	return b
}

// AddQuote appends an option quote to its underlying's chain.
func (b *Builder) AddQuote(q OptionQuote) *Builder {
	b.chains[q.Underlying] = append(b.chains[q.Underlying], q)
	return b
}

// Build freezes the collected data. The builder must not be reused.
func (b *Builder) Build() *Snapshot {
	for sym, chain := range b.chains {
		sort.SliceStable(chain, func(i, j int) bool {
			a, c := chain[i], chain[j]
			if !a.Expiry.Equal(c.Expiry) {
				return a.Expiry.Before(c.Expiry)
			}
			if a.Strike != c.Strike {
				return a.Strike < c.Strike
			}
			return a.Right < c.Right
		})
		b.chains[sym] = chain
	}
	s := &Snapshot{Time: b.at, underlyings: b.underlyings, chains: b.chains}
	b.underlyings, b.chains = nil, nil
	return s
}
