package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pledgepool/internal/adapter"
	"pledgepool/internal/engine"
	"pledgepool/internal/ledger"
	"pledgepool/internal/observability"
	"pledgepool/internal/query"
)

const requestLimit = 1 << 20 // 1 MiB

// Server exposes the engine's operations and queries over HTTP/JSON.
// Caller identity arrives in the request body; authentication of that
// identity is the deployment's ingress concern, authorization of
// privileged calls is the engine's auth gate.
type Server struct {
	eng     *engine.Engine
	queries *query.Service
	health  *observability.HealthChecker
	logger  zerolog.Logger
	timeout time.Duration
	venues  SwapVenueBuilder
}

// SwapVenueBuilder constructs a swap venue for a router address, so the
// exchange route can be repointed at runtime. Deployments without an
// on-chain venue leave it unset and the admin route reports as such.
type SwapVenueBuilder func(ctx context.Context, router string) (adapter.SwapVenue, error)

// SetSwapVenueBuilder installs the venue builder. Call before serving requests.
func (s *Server) SetSwapVenueBuilder(fn SwapVenueBuilder) {
	s.venues = fn
}

func New(eng *engine.Engine, queries *query.Service, health *observability.HealthChecker, logger zerolog.Logger) *Server {
	return &Server{
		eng:     eng,
		queries: queries,
		health:  health,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pools", func(r chi.Router) {
			r.Get("/", s.listPools)
			r.Post("/", s.createPool)

			r.Route("/{poolID}", func(r chi.Router) {
				r.Get("/", s.getPool)
				r.Get("/prices", s.getPrices)
				r.Get("/liquidation-check", s.liquidationCheck)
				r.Get("/history", s.poolHistory)
				r.Get("/stake/{side}/{participant}", s.getStake)

				r.Post("/deposit/{side}", s.deposit)
				r.Post("/refund/{side}", s.refund)
				r.Post("/claim/{side}", s.claim)
				r.Post("/withdraw/{side}", s.withdraw)
				r.Post("/emergency/{side}", s.emergency)
				r.Post("/settle", s.settle)
				r.Post("/finish", s.finish)
				r.Post("/liquidate", s.liquidate)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/fees", s.setFees)
			r.Post("/fee-recipient", s.setFeeRecipient)
			r.Post("/min-deposit", s.setMinDeposit)
			r.Post("/swap-venue", s.setSwapVenue)
			r.Post("/pause", s.setPause)
		})
	})
	return r
}

// --- request decoding helpers ---

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestLimit))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func poolIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "poolID"), 10, 64)
}

func sideParam(r *http.Request) (ledger.Side, error) {
	switch chi.URLParam(r, "side") {
	case "lend":
		return ledger.SideLend, nil
	case "borrow":
		return ledger.SideBorrow, nil
	default:
		return 0, errors.New("side must be lend or borrow")
	}
}

func parseAmount(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, errors.New("amount must be a base-10 integer")
	}
	return v, nil
}

// --- response helpers ---

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps engine sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrWrongState),
		errors.Is(err, engine.ErrTimeWindow),
		errors.Is(err, engine.ErrAlreadyRefunded),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrSlippage),
		errors.Is(err, engine.ErrReentrancy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrBelowMinimum),
		errors.Is(err, engine.ErrCapExceeded):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrPriceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
