// Package data loads market snapshots (underlying spot plus option chain)
// from local CSV files, the Massive/Polygon REST API, or a seeded
// synthetic generator.
package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
)

// Typed errors shared by the providers.
var (
	ErrNoData          = errors.New("no market data")
	ErrNoSpot          = errors.New("no underlying price")
	ErrUnknownProvider = errors.New("unknown data provider")
	ErrMissingAPIKey   = errors.New("missing API key")
)

// Provider supplies market snapshots.
type Provider interface {
	// Snapshot returns the underlying's spot and option chain as of asOf.
	Snapshot(ctx context.Context, underlying string, asOf time.Time) (*market.Snapshot, error)
	Name() string
}

// DateMatchType selects which available date stands in for a target
// date that has no data.
type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available date after target
	MatchLower   DateMatchType = "lower"   // last available date before target
	MatchNearest DateMatchType = "nearest" // closest available date (default)
)

// ParseDateMatch accepts the DateMatchType names in any case. The empty
// string means the provider default.
func ParseDateMatch(s string) (DateMatchType, error) {
	m := DateMatchType(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "", MatchExact, MatchHigher, MatchLower, MatchNearest:
		return m, nil
	}
	return "", fmt.Errorf("unknown date match %q", s)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
	Count int64
}

// Options selects and configures a provider in New.
type Options struct {
	Kind      string        // csv, massive, synthetic
	Dir       string        // csv
	DateMatch DateMatchType // csv; empty means on or before asOf
	APIKey    string        // massive
	BaseURL   string        // massive; empty uses the public endpoint
	Seed      int64         // synthetic
	Vol       float64
	Spot      float64
}

// New builds the provider named by opts.Kind.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "csv", "local":
		p := NewCSVProvider(opts.Dir)
		p.match = opts.DateMatch
		return p, nil
	case "massive", "polygon":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%w: set MASSIVE_API_KEY or POLYGON_API_KEY", ErrMissingAPIKey)
		}
		p := NewMassiveProvider(opts.APIKey)
		if opts.BaseURL != "" {
			p.SetBaseURL(opts.BaseURL)
		}
		return p, nil
	case "", "synthetic":
		return NewSyntheticProvider(opts.Seed, opts.Spot, opts.Vol), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Kind)
}

// APIKeyFromEnv returns MASSIVE_API_KEY, falling back to POLYGON_API_KEY.
func APIKeyFromEnv() string {
	if k := os.Getenv("MASSIVE_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("POLYGON_API_KEY")
}

// fallbackProvider asks secondary when primary fails.
type fallbackProvider struct {
	primary   Provider
	secondary Provider
}

// WithSecondary returns a provider that falls back to secondary whenever
// primary returns an error. A nil secondary returns primary unchanged.
func WithSecondary(primary, secondary Provider) Provider {
	if secondary == nil {
		return primary
	}
	return &fallbackProvider{primary: primary, secondary: secondary}
}

func (f *fallbackProvider) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *fallbackProvider) Snapshot(ctx context.Context, underlying string, asOf time.Time) (*market.Snapshot, error) {
	snap, err := f.primary.Snapshot(ctx, underlying, asOf)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	logger.Debugf("event=provider_fallback primary=%s secondary=%s err=%v", f.primary.Name(), f.secondary.Name(), err)
	return f.secondary.Snapshot(ctx, underlying, asOf)
}

// MatchDate picks the date in dates matching d under mode. dates is
// sorted in place. The zero time means no match.
func MatchDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {

	// Search useful info
	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, dt := range dates {
		if dt.Equal(d) {
			exact = dt
		}
		if dt.Before(d) {
			lower = dt // will keep last < d
		}
		if dt.After(d) && higher.IsZero() {
			higher = dt
		}
	}

	switch mode {
	case MatchExact:
		return exact
	case MatchLower:
		return lower
	case MatchHigher:
		return higher
	}

	if !exact.IsZero() {
		return exact
	}
	switch {
	case !lower.IsZero() && !higher.IsZero():
		if d.Sub(lower) <= higher.Sub(d) {
			return lower
		}
		return higher
	case !lower.IsZero():
		return lower
	case !higher.IsZero():
		return higher
	}
	return time.Time{}
}

// pickDate returns the exact date when present, otherwise the one mode
// selects. The empty mode and MatchLower both mean on or before d.
func pickDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {
	switch mode {
	case "", MatchLower:
		return onOrBefore(d, dates)
	case MatchExact:
		return MatchDate(d, dates, MatchExact)
	}
	if m := MatchDate(d, dates, MatchExact); !m.IsZero() {
		return m
	}
	return MatchDate(d, dates, mode)
}

// onOrBefore returns the last date not after d.
func onOrBefore(d time.Time, dates []time.Time) time.Time {
	if m := MatchDate(d, dates, MatchExact); !m.IsZero() {
		return m
	}
	return MatchDate(d, dates, MatchLower)
}

// Closest finds the value in a sorted slice nearest target. Ties go to the
// higher value. It panics on an empty slice.
func Closest(numList []float64, target float64) float64 {
	n := len(numList)
	if n == 0 {
		panic("empty list")
	}

	i := sort.Search(n, func(i int) bool {
		return numList[i] >= target
	})

	if i == 0 {
		return numList[0]
	}
	if i == n {
		return numList[n-1]
	}

	before := numList[i-1]
	after := numList[i]

	if math.Abs(before-target) < math.Abs(after-target) {
		return before
	}
	return after
}
