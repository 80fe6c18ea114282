package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaeljc/tipsengine/internal/config"
)

// Server serves the probes and the Prometheus scrape endpoint on their own
// port, away from the tips API listener.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	checkers []Checker

	handler http.Handler
	srv     *http.Server
}

// NewServer wires the probe routes. Every checker must pass for the
// readiness probe to report up.
func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, checkers ...Checker) *Server {
	if cfg == nil {
		panic("observability: config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{logger: logger, cfg: cfg, checkers: checkers}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, middleware.NoCache)

	r.Get(s.cfg.LivenessPath, s.liveness)
	r.Get(s.cfg.ReadinessPath, s.readiness)
	r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
	return r
}

// Handler returns the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured port and serves in the background.
// A port that cannot be bound is reported here rather than logged later.
func (s *Server) Start() error {
	addr := net.JoinHostPort("", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  3 * s.cfg.Timeout,
	}

	s.logger.Info("observability server listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("liveness_path", s.cfg.LivenessPath),
		slog.String("readiness_path", s.cfg.ReadinessPath),
		slog.String("metrics_path", s.cfg.MetricsPath),
	)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", slog.Any("error", err))
		}
	}()
	return nil
}

// Shutdown stops the listener started by Start. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.srv.Shutdown(ctx)
}
