package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-vol/internal/data"
	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/security"
	"github.com/contactkeval/option-vol/internal/volatility"
)

func newTestServer(t *testing.T, model security.VolatilityModel) *httptest.Server {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{
		Underlying:     "SPY",
		Estimator:      volatility.Config{RiskFreeRate: 0.04},
		Model:          model,
		SettlementDays: 1,
	}, data.NewSyntheticProvider(7, 584.64, 0.2))
	require.NoError(t, err)

	srv := httptest.NewServer(New(p, 5*time.Second).Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/price")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEstimateWithSpot(t *testing.T) {
	srv := newTestServer(t, security.NewConstantModelFromFloat(0.25))
	resp := post(t, srv.URL+"/estimate", EstimateRequest{
		Right: "C", Strike: 100, Expiry: "2025-03-21", AsOf: "2025-01-02T15:00:00Z", Spot: 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var row pipeline.Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&row))
	assert.Equal(t, "O:SPY250321C00100000", row.Symbol)
	assert.Equal(t, 0.25, row.Volatility)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), row.ReferenceDate)
	assert.Greater(t, row.Price, 0.0)
	assert.Zero(t, row.MarketMid)
}

func TestEstimateFromProviderChain(t *testing.T) {
	srv := newTestServer(t, security.NewConstantModelFromFloat(0.2))
	resp := post(t, srv.URL+"/estimate", EstimateRequest{
		Right: "put", Strike: 585, Expiry: "2025-01-17", AsOf: "2025-01-02T15:00:00Z",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var row pipeline.Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&row))
	assert.Equal(t, 584.64, row.Spot)
	assert.Greater(t, row.MarketMid, 0.0)
	assert.Less(t, row.Delta, 0.0)
}

func TestEstimateUnavailableIsNotAnError(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := post(t, srv.URL+"/estimate", EstimateRequest{
		Right: "call", Strike: 100, Expiry: "2025-03-21", AsOf: "2025-01-02T15:00:00Z", Spot: 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var row pipeline.Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&row))
	assert.True(t, row.Skipped)
	assert.Equal(t, "no_volatility_model", row.Reason)
	assert.Zero(t, row.Price)
}

func TestEstimateBadRequests(t *testing.T) {
	srv := newTestServer(t, nil)
	cases := map[string]EstimateRequest{
		"right":  {Right: "straddle", Strike: 100, Expiry: "2025-03-21"},
		"strike": {Right: "call", Strike: 0, Expiry: "2025-03-21"},
		"expiry": {Right: "call", Strike: 100, Expiry: "March"},
		"as_of":  {Right: "call", Strike: 100, Expiry: "2025-03-21", AsOf: "2025-01-02"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := post(t, srv.URL+"/estimate", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.Equal(t, "estimate: request", e.Type)
			assert.NotEmpty(t, e.Msg)
		})
	}

	resp, err := http.Post(srv.URL+"/estimate", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrice(t *testing.T) {
	srv := newTestServer(t, security.NewConstantModelFromFloat(0.2))
	resp := post(t, srv.URL+"/price", PriceRequest{AsOf: "2025-01-02T15:00:00Z"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "SPY", res.Underlying)
	assert.Equal(t, 66, res.Priced)
	assert.Len(t, res.Rows, 66)
}

func TestPriceWithoutProvider(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{Underlying: "SPY"}, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(New(p, 0).Router())
	defer srv.Close()

	resp := post(t, srv.URL+"/price", PriceRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
