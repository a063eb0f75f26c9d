package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-vol/internal/market"
)

func TestMatchDate(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC) }
	dates := []time.Time{d(10), d(2), d(6)}

	cases := []struct {
		target time.Time
		mode   DateMatchType
		want   time.Time
	}{
		{d(6), MatchExact, d(6)},
		{d(5), MatchExact, time.Time{}},
		{d(5), MatchLower, d(2)},
		{d(5), MatchHigher, d(6)},
		{d(4), MatchNearest, d(2)}, // tie goes lower
		{d(9), MatchNearest, d(10)},
		{d(1), "bogus", d(2)},
		{d(12), MatchHigher, time.Time{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchDate(tc.target, dates, tc.mode), "%s %s", tc.target.Format(dateLayout), tc.mode)
	}
	assert.Equal(t, d(6), onOrBefore(d(6), dates))
	assert.Equal(t, d(6), onOrBefore(d(8), dates))
	assert.True(t, onOrBefore(d(1), dates).IsZero())
}

func TestClosest(t *testing.T) {
	strikes := []float64{570, 575, 580, 585}
	assert.Equal(t, 580.0, Closest(strikes, 581.39))
	assert.Equal(t, 585.0, Closest(strikes, 582.5))
	assert.Equal(t, 570.0, Closest(strikes, 1))
	assert.Equal(t, 585.0, Closest(strikes, 999))
	assert.Panics(t, func() { Closest(nil, 1) })
}

type failingProvider struct{ err error }

func (f failingProvider) Name() string { return "failing" }
func (f failingProvider) Snapshot(context.Context, string, time.Time) (*market.Snapshot, error) {
	return nil, f.err
}

func TestWithSecondary(t *testing.T) {
	synth := NewSyntheticProvider(1, 100, 0.2)
	assert.Same(t, synth, WithSecondary(synth, nil))

	p := WithSecondary(failingProvider{err: errors.New("down")}, synth)
	assert.Equal(t, "failing+synthetic", p.Name())

	snap, err := p.Snapshot(context.Background(), "SPY", asOf)
	require.NoError(t, err)
	spot, _ := snap.Spot("SPY")
	assert.Equal(t, 100.0, spot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Snapshot(ctx, "SPY", asOf)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(Options{Kind: "csv", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "csv", p.Name())

	p, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "synthetic", p.Name())

	_, err = New(Options{Kind: "massive"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	p, err = New(Options{Kind: "Polygon", APIKey: "k", BaseURL: "http://localhost:9/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9", p.(*massiveProvider).Client.HTTP.BaseURL)

	_, err = New(Options{Kind: "bloomberg"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("MASSIVE_API_KEY", "")
	t.Setenv("POLYGON_API_KEY", "poly")
	assert.Equal(t, "poly", APIKeyFromEnv())

	t.Setenv("MASSIVE_API_KEY", "massive")
	assert.Equal(t, "massive", APIKeyFromEnv())
}
