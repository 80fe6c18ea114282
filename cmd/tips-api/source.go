package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/database"
	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/store"
)

// catalogSource bundles a catalog.Source with the infrastructure that
// backs it.
type catalogSource struct {
	source   catalog.Source
	checkers []observability.Checker

	// workers returns the background loops that keep the store fresh.
	workers func(s *catalog.Store) []func(context.Context)
	close   func()
}

// openCatalogSource connects to the source selected by cfg.Catalog.Source.
func openCatalogSource(ctx context.Context, cfg *config.Config) (*catalogSource, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		return openPostgresSource(ctx, &cfg.Database)
	case config.CatalogSourceRedis:
		return openRedisSource(ctx, &cfg.Redis)
	default:
		return openFileSource(ctx, &cfg.Catalog)
	}
}

func openFileSource(ctx context.Context, cfg *config.CatalogConfig) (*catalogSource, error) {
	log := logger.FromContext(ctx)
	src := &catalog.FileSource{
		TipsPath:        cfg.TipsPath,
		RulesPath:       cfg.RulesPath,
		EnrichmentsPath: cfg.EnrichmentsPath,
	}

	out := &catalogSource{
		source:  src,
		workers: func(*catalog.Store) []func(context.Context) { return nil },
		close:   func() {},
	}
	if !cfg.Watch {
		return out, nil
	}

	fw, err := catalog.NewFileWatcher(src.Paths(), cfg.WatchDebounce, log)
	if err != nil {
		return nil, fmt.Errorf("failed to watch catalog files: %w", err)
	}
	out.workers = func(s *catalog.Store) []func(context.Context) {
		return []func(context.Context){
			func(ctx context.Context) {
				err := fw.Watch(ctx, func(ctx context.Context) error {
					_, err := s.Reload(ctx)
					return err
				})
				if err != nil {
					log.Error("catalog file watcher stopped", slog.Any("error", err))
				}
			},
		}
	}
	out.close = func() {
		if err := fw.Stop(); err != nil {
			log.Warn("failed to stop catalog file watcher", slog.Any("error", err))
		}
	}
	return out, nil
}

func openPostgresSource(ctx context.Context, cfg *config.DatabaseConfig) (*catalogSource, error) {
	pool, err := database.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := store.NewPostgresStore(pool)

	return &catalogSource{
		source:   repo,
		checkers: []observability.Checker{repo},
		workers: func(*catalog.Store) []func(context.Context) {
			return []func(context.Context){
				func(ctx context.Context) { database.RunPoolMonitor(ctx, pool, cfg.PoolMonitorInterval) },
			}
		},
		close: pool.Close,
	}, nil
}

func openRedisSource(ctx context.Context, cfg *config.RedisConfig) (*catalogSource, error) {
	log := logger.FromContext(ctx)
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	snapshots := cache.NewSnapshotCache(client, cfg.KeyPrefix)

	return &catalogSource{
		source:   snapshots,
		checkers: []observability.Checker{snapshots},
		workers: func(s *catalog.Store) []func(context.Context) {
			return []func(context.Context){
				func(ctx context.Context) { cache.RunPoolMonitor(ctx, client, cfg.PoolMonitorInterval) },
				func(ctx context.Context) {
					err := snapshots.Subscribe(ctx, func(ctx context.Context) error {
						_, err := s.Reload(ctx)
						return err
					})
					if err != nil {
						log.Error("catalog invalidation subscription stopped", slog.Any("error", err))
					}
				},
			}
		},
		close: func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", slog.Any("error", err))
			}
		},
	}, nil
}
