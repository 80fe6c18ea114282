// Package main initializes and runs the tips API service.
//
// It acts as the composition root for the REST API, wiring the catalog
// source selected by configuration, the rule engine and the observability
// server, and handling the server lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/ruleengine"
	"github.com/rafaeljc/tipsengine/internal/tips"
	"github.com/rafaeljc/tipsengine/internal/tipsapi"
)

const expressionCacheSampleInterval = 15 * time.Second

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// Background workers stop when bgCtx is cancelled during shutdown.
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	var wg sync.WaitGroup

	// -------------------------------------------------------------------------
	// 2. Rule Engine
	// -------------------------------------------------------------------------
	exprCache, err := cache.NewExpressionCache(cfg.Catalog.ExpressionCacheCapacity, cfg.Catalog.ExpressionCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to create expression cache: %w", err)
	}
	defer exprCache.Close()

	wg.Add(1)
	go func() {
		defer wg.Done()
		exprCache.RunMetricsCollector(bgCtx, expressionCacheSampleInterval)
	}()

	engine := ruleengine.New(log,
		ruleengine.WithEvaluator(ruleengine.NodeTypeExpression, ruleengine.NewExpressionEvaluator(exprCache, nil)),
	)
	generator := tips.NewGenerator(engine, log, tips.WithLocation(loc))

	// -------------------------------------------------------------------------
	// 3. Catalog
	// -------------------------------------------------------------------------
	src, err := openCatalogSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.close()

	store := catalog.NewStore(src.source, log)
	if _, err := store.Reload(ctx); err != nil {
		if cfg.Catalog.Source == config.CatalogSourceFile {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		// Remote sources may not be published yet. The service stays
		// unready until a later reload succeeds.
		log.Warn("initial catalog load failed", slog.Any("error", err))
	}

	for _, worker := range src.workers(store) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(bgCtx)
		}()
	}

	if cfg.Catalog.RefreshInterval > 0 {
		refresher := catalog.NewRefresher(store, cfg.Catalog.RefreshInterval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresher.Run(bgCtx)
		}()
	}

	// -------------------------------------------------------------------------
	// 4. Observability Server
	// -------------------------------------------------------------------------
	checkers := append([]observability.Checker{store}, src.checkers...)
	obsServer := observability.NewServer(log, &cfg.Observability, checkers...)
	if err := obsServer.Start(); err != nil {
		return fmt.Errorf("failed to start observability server: %w", err)
	}

	// -------------------------------------------------------------------------
	// 5. HTTP Server Setup
	// -------------------------------------------------------------------------
	api := tipsapi.NewAPI(log, store, generator, tipsapi.Config{
		APIKeyHash:   cfg.Server.APIKeyHash,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("tips API listening",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 6. Graceful Shutdown
	// -------------------------------------------------------------------------
	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping tips API")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.Any("error", err))
	}

	cancelBg()
	wg.Wait()

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.Any("error", err))
	}

	if serveErr != nil {
		return serveErr
	}
	log.Info("service exited successfully")
	return nil
}
