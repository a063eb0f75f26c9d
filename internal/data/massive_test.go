package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-vol/internal/security"
)

var (
	underlying = "SPY"
	asOf       = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	expiryDate = time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
)

func testMassive(srv *httptest.Server) (*massiveProvider, *int) {
	waits := 0
	p := NewMassiveProvider("test")
	p.SetBaseURL(srv.URL)
	p.wait = func(context.Context) error {
		waits++
		return nil
	}
	return p, &waits
}

const chainPage1 = `{
	"status": "OK",
	"results": [
		{"details": {"contract_type": "call", "expiration_date": "2025-01-17", "strike_price": 580, "ticker": "O:SPY250117C00580000"},
		 "last_quote": {"bid": 12.1, "ask": 12.3}, "implied_volatility": 0.14,
		 "underlying_asset": {"price": 581.39, "ticker": "SPY"}},
		{"details": {"contract_type": "put", "expiration_date": "2025-01-17", "strike_price": 580, "ticker": "O:SPY250117P00580000"},
		 "last_quote": {"bid": 9.8, "ask": 10.0}, "implied_volatility": 0.15,
		 "underlying_asset": {"price": 581.39, "ticker": "SPY"}}
	],
	"next_url": "%s/v3/snapshot/options/SPY?cursor=abc"
}`

const chainPage2 = `{
	"status": "OK",
	"results": [
		{"details": {"contract_type": "call", "expiration_date": "2025-02-21", "strike_price": 590, "ticker": "O:SPY250221C00590000"},
		 "last_quote": {"bid": 0, "ask": 0}, "last_trade": {"price": 11.5},
		 "underlying_asset": {"price": 581.39, "ticker": "SPY"}},
		{"details": {"contract_type": "other", "expiration_date": "2025-02-21", "strike_price": 590}},
		{"details": {"contract_type": "put", "expiration_date": "2025-02-21", "strike_price": 0}}
	]
}`

func TestMassiveSnapshotPagination(t *testing.T) {
	calls := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/snapshot/options/SPY", r.URL.Path)

		if r.URL.Query().Get("cursor") == "" {
			assert.Equal(t, "2025-01-02", r.URL.Query().Get("expiration_date.gte"))
			w.Write([]byte(strings.Replace(chainPage1, "%s", srv.URL, 1)))
			return
		}
		w.Write([]byte(chainPage2))
	}))
	defer srv.Close()

	p, _ := testMassive(srv)
	snap, err := p.Snapshot(context.Background(), "spy", asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	spot, ok := snap.Spot(underlying)
	require.True(t, ok)
	assert.Equal(t, 581.39, spot)

	chain := snap.Chain(underlying)
	require.Len(t, chain, 3)
	assert.Equal(t, security.Call, chain[0].Right)
	assert.Equal(t, 0.14, chain[0].ImpliedVol)
	assert.InDelta(t, 12.2, chain[0].Mid(), 1e-9)
	assert.Equal(t, 11.5, chain[2].Mid())

	call, put, ok := snap.ATMPair(underlying, expiryDate, spot)
	require.True(t, ok)
	assert.Equal(t, "O:SPY250117C00580000", call.Symbol)
	assert.Equal(t, "O:SPY250117P00580000", put.Symbol)
}

func TestMassiveSnapshotRetriesOnRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(chainPage2))
	}))
	defer srv.Close()

	p, waits := testMassive(srv)
	snap, err := p.Snapshot(context.Background(), underlying, asOf)
	require.NoError(t, err)
	assert.LessOrEqual(t, *waits, 1)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Len(t, snap.Chain(underlying), 1)
}

func TestMassiveSnapshotHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer srv.Close()

	p, _ := testMassive(srv)
	_, err := p.Snapshot(context.Background(), underlying, asOf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "option chain SPY")
	assert.NotErrorIs(t, err, ErrNoSpot)
}

func TestMassiveSpotFallsBackToDailyClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/SPY/range/1/day/") {
			w.Write([]byte(`{"ticker":"SPY","status":"OK","results":[
				{"t": 1735534800000, "o":590,"h":592,"l":585,"c":588.22,"v":100},
				{"t": 1735621200000, "o":588,"h":589,"l":584,"c":586.08,"v":100},
				{"t": 1735794000000, "o":587,"h":590,"l":580,"c":584.64,"v":100}
			]}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[
			{"details": {"contract_type": "call", "expiration_date": "2025-01-17", "strike_price": 580, "ticker": "O:SPY250117C00580000"},
			 "last_quote": {"bid": 12.1, "ask": 12.3}}
		]}`))
	}))
	defer srv.Close()

	p, _ := testMassive(srv)
	snap, err := p.Snapshot(context.Background(), underlying, asOf)
	require.NoError(t, err)
	spot, ok := snap.Spot(underlying)
	require.True(t, ok)
	assert.Equal(t, 584.64, spot)
}

func TestMassiveSnapshotNoSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer srv.Close()

	p, _ := testMassive(srv)
	_, err := p.Snapshot(context.Background(), underlying, asOf)
	assert.ErrorIs(t, err, ErrNoSpot)
}

func TestMassiveSnapshotHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := testMassive(srv)
	p.wait = waitForNextMinute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Snapshot(ctx, underlying, asOf)
	assert.ErrorIs(t, err, context.Canceled)
}
