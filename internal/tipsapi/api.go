// Package tipsapi implements the REST API that serves personalised tips.
package tipsapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/tips"
)

// Catalogs provides the published catalog and reloads it on demand.
type Catalogs interface {
	Current() (*tips.Catalog, error)
	Reload(ctx context.Context) (bool, error)
}

var _ Catalogs = (*catalog.Store)(nil)

// TipGenerator runs the selection pipeline.
type TipGenerator interface {
	Generate(ctx context.Context, catalog *tips.Catalog, req tips.Request) ([]tips.Output, error)
}

var _ TipGenerator = (*tips.Generator)(nil)

// Config carries the request limits and admin credentials.
type Config struct {
	// APIKeyHash is the hex SHA-256 of the admin API key. Empty disables
	// the admin routes.
	APIKeyHash string

	// MaxBodyBytes bounds the gettips request body.
	MaxBodyBytes int64
}

// API holds the router and its dependencies.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger    *slog.Logger
	catalogs  Catalogs
	generator TipGenerator
	cfg       Config
}

// NewAPI creates the API and registers its routes.
// Panics if catalogs or generator are nil.
func NewAPI(logger *slog.Logger, catalogs Catalogs, generator TipGenerator, cfg Config) *API {
	if catalogs == nil {
		panic("tipsapi: catalogs cannot be nil")
	}
	if generator == nil {
		panic("tipsapi: generator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}

	api := &API{
		Router:    chi.NewRouter(),
		logger:    logger,
		catalogs:  catalogs,
		generator: generator,
		cfg:       cfg,
	}

	api.configureRoutes()
	return api
}

func (a *API) configureRoutes() {
	a.Router.Use(RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(a.requestLogger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/status/health", a.handleHealth)
	a.Router.Post("/tips/gettips", a.handleGetTips)

	if a.cfg.APIKeyHash != "" {
		a.Router.Route("/admin", func(r chi.Router) {
			r.Use(a.authenticateAPIKey)
			r.Post("/catalog/reload", a.handleReload)
		})
	}
}

// ServeHTTP makes API an http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Router.ServeHTTP(w, r)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
