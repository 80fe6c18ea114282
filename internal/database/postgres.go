// Package database provides the PostgreSQL connection factory.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/logger"
)

// NewPostgresPool initializes a PostgreSQL connection pool.
// It returns the pool directly, allowing the caller to manage the lifecycle via Dependency Injection.
// The initial ping is retried with exponential backoff, mirroring the Redis client.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// MaxConns prevents the app from starving the DB (connection exhaustion).
	// MinConns keeps some connections warm to reduce latency for new requests.
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	maxRetries := max(cfg.PingMaxRetries, 1)
	backoff := cfg.PingBackoff
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var lastErr error
	log := logger.FromContext(ctx)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		pingErr := pool.Ping(pingCtx)
		cancel()

		if pingErr == nil {
			log.Info("postgres ping successful", slog.Int("attempt", attempt))
			return pool, nil
		}

		log.Warn("postgres ping failed", slog.Int("attempt", attempt), slog.Int("max_retries", maxRetries), slog.Any("error", pingErr))
		lastErr = pingErr
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				pool.Close()
				return nil, fmt.Errorf("failed to connect to postgres: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to postgres after %d retries: %w", maxRetries, lastErr)
}
