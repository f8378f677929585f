// Package server exposes the engine's operator API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/polyhedge/internal/server/handler"
	"github.com/alanyoungcy/polyhedge/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
	// RequestsPerS and Burst bound each client IP; zero disables limiting.
	RequestsPerS float64
	Burst        int
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health  *handler.HealthHandler
	Hedging *handler.HedgingHandler
	Orders  *handler.OrderHandler  // nil disables manual orders
	Events  *handler.EventsHandler // nil without a journal
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// Health and metrics stay reachable without the API key.
func NewServer(cfg Config, handlers Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /api/stats", handlers.Hedging.Stats)
	mux.HandleFunc("GET /api/liquidation-candidates", handlers.Hedging.LiquidationCandidates)
	mux.HandleFunc("GET /api/reserve", handlers.Hedging.Reserve)
	mux.HandleFunc("GET /api/pairings", handlers.Hedging.Pairings)
	mux.HandleFunc("POST /api/cycle", handlers.Hedging.Cycle)
	mux.HandleFunc("DELETE /api/hedged/{market}/{token}", handlers.Hedging.Unhedge)

	if handlers.Orders != nil {
		mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	}
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.RequestsPerS > 0 {
		h = middleware.RateLimit(middleware.NewClientLimiter(cfg.RequestsPerS, cfg.Burst))(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
