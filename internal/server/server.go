// Package server exposes the pricing pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/contactkeval/option-vol/internal/data"
	"github.com/contactkeval/option-vol/internal/logger"
	"github.com/contactkeval/option-vol/internal/market"
	"github.com/contactkeval/option-vol/internal/pipeline"
	"github.com/contactkeval/option-vol/internal/security"
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

// EstimateRequest asks for one contract. Spot, when set, replaces the
// provider snapshot with a spot-only one.
type EstimateRequest struct {
	Right  string  `json:"right"`
	Strike float64 `json:"strike"`
	Expiry string  `json:"expiry"` // YYYY-MM-DD
	AsOf   string  `json:"as_of"`  // RFC 3339, empty means now
	Spot   float64 `json:"spot"`
}

// PriceRequest prices the whole chain at AsOf.
type PriceRequest struct {
	AsOf string `json:"as_of"`
}

// Server routes requests to a single pipeline.
type Server struct {
	p       *pipeline.Pipeline
	timeout time.Duration
	now     func() time.Time
}

// New returns a server for p. A zero timeout leaves requests unbounded.
func New(p *pipeline.Pipeline, timeout time.Duration) *Server {
	return &Server{p: p, timeout: timeout, now: time.Now}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/estimate", s.estimate).Methods(http.MethodPost)
	r.HandleFunc("/price", s.price).Methods(http.MethodPost)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(w, "estimate: decode", http.StatusBadRequest, err)
		return
	}
	q, asOf, err := s.quote(req)
	if err != nil {
		setErrorResponse(w, "estimate: request", http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	var snap *market.Snapshot
	if req.Spot > 0 {
		snap = market.NewBuilder(asOf).SetSpot(q.Underlying, req.Spot).Build()
	} else if snap, err = s.p.Snapshot(ctx, asOf); err != nil {
		setErrorResponse(w, "estimate: snapshot", statusFor(err), err)
		return
	}
	if live, ok := snap.Quote(q.Underlying, q.Symbol); ok {
		q = live
	}

	row, err := s.p.PriceQuote(snap, q)
	if err != nil {
		setErrorResponse(w, "estimate: price", statusFor(err), err)
		return
	}
	setResponse(w, row)
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			setErrorResponse(w, "price: decode", http.StatusBadRequest, err)
			return
		}
	}
	asOf, err := s.asOf(req.AsOf)
	if err != nil {
		setErrorResponse(w, "price: request", http.StatusBadRequest, err)
		return
	}

	ctx, cancel := s.context(r.Context())
	defer cancel()

	res, err := s.p.Run(ctx, asOf)
	if err != nil {
		setErrorResponse(w, "price: run", statusFor(err), err)
		return
	}
	setResponse(w, res)
}

func (s *Server) quote(req EstimateRequest) (market.OptionQuote, time.Time, error) {
	right, err := security.ParseRight(req.Right)
	if err != nil {
		return market.OptionQuote{}, time.Time{}, err
	}
	if req.Strike <= 0 {
		return market.OptionQuote{}, time.Time{}, fmt.Errorf("strike must be positive, got %v", req.Strike)
	}
	expiry, err := time.Parse("2006-01-02", strings.TrimSpace(req.Expiry))
	if err != nil {
		return market.OptionQuote{}, time.Time{}, fmt.Errorf("expiry %q: want YYYY-MM-DD", req.Expiry)
	}
	asOf, err := s.asOf(req.AsOf)
	if err != nil {
		return market.OptionQuote{}, time.Time{}, err
	}
	und := s.p.Underlying().Symbol()
	return market.OptionQuote{
		Symbol:     security.OptionSymbol(und, expiry, right, req.Strike),
		Underlying: und,
		Right:      right,
		Strike:     req.Strike,
		Expiry:     expiry,
	}, asOf, nil
}

func (s *Server) asOf(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of %q: want RFC 3339", v)
	}
	return t, nil
}

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, data.ErrNoData), errors.Is(err, data.ErrNoSpot):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func setResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("event=encode_response_failed err=%v", err)
	}
}

func setErrorResponse(w http.ResponseWriter, errType string, status int, err error) {
	logger.Debugf("event=request_failed type=%q status=%d err=%v", errType, status, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Type: errType, Msg: err.Error()}); encErr != nil {
		logger.Errorf("event=encode_response_failed err=%v", encErr)
	}
}
