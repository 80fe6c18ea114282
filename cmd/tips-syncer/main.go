// Package main runs the catalog syncer worker.
//
// The worker propagates the catalog stored in PostgreSQL to the Redis
// snapshot read by the tips API. With -seed it instead loads a catalog
// from a directory of JSON documents into PostgreSQL and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/database"
	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/store"
	"github.com/rafaeljc/tipsengine/internal/syncer"
)

func main() {
	seedDir := flag.String("seed", "", "load tips.json, compound_rules.json and enrichments.json from `dir` into postgres and exit")
	flag.Parse()

	if err := run(*seedDir); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(seedDir string) error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------
	cfg, err := config.LoadSyncer()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(&cfg.App).With(slog.String("component", "syncer"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := store.NewPostgresStore(pool)

	if seedDir != "" {
		return seed(ctx, repo, seedDir)
	}

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	snapshots := cache.NewSnapshotCache(redisClient, cfg.Redis.KeyPrefix)

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		database.RunPoolMonitor(bgCtx, pool, cfg.Database.PoolMonitorInterval)
	}()
	go func() {
		defer wg.Done()
		cache.RunPoolMonitor(bgCtx, redisClient, cfg.Redis.PoolMonitorInterval)
	}()

	// -------------------------------------------------------------------------
	// 3. Observability Server
	// -------------------------------------------------------------------------
	obsServer := observability.NewServer(log, &cfg.Observability, repo, snapshots)
	if err := obsServer.Start(); err != nil {
		return fmt.Errorf("failed to start observability server: %w", err)
	}

	// -------------------------------------------------------------------------
	// 4. Worker
	// -------------------------------------------------------------------------
	svc := syncer.New(log, cfg.Syncer, repo, snapshots)
	runErr := svc.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	log.Info("shutting down syncer")

	cancelBg()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.Any("error", err))
	}

	return runErr
}

// seed replaces the stored catalog with the documents found in dir.
func seed(ctx context.Context, repo store.CatalogRepository, dir string) error {
	src := &catalog.FileSource{
		TipsPath:        filepath.Join(dir, "tips.json"),
		RulesPath:       filepath.Join(dir, "compound_rules.json"),
		EnrichmentsPath: filepath.Join(dir, "enrichments.json"),
	}

	docs, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read seed catalog: %w", err)
	}

	rev, err := repo.ReplaceCatalog(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	logger.FromContext(ctx).Info("catalog seeded",
		slog.String("dir", dir),
		slog.Int64("revision", rev),
	)
	return nil
}
