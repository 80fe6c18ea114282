package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/logger"
)

const defaultPingTimeout = 5 * time.Second

// NewRedisClient connects to Redis and blocks until the server answers a
// PING or cfg.PingMaxRetries attempts have failed.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := awaitPing(ctx, client, cfg); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// clientOptions maps cfg onto go-redis options. Connection details from
// cfg.URL replace the host, port, password and DB components.
func clientOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = parsed
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// awaitPing pings until success, doubling cfg.PingBackoff after each failure.
func awaitPing(ctx context.Context, client *redis.Client, cfg *config.RedisConfig) error {
	log := logger.FromContext(ctx)

	attempts := max(cfg.PingMaxRetries, 1)
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	wait := cfg.PingBackoff

	var err error
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info("redis ping successful", slog.Int("attempt", attempt))
			return nil
		}

		log.Warn("redis ping failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", attempts),
			slog.Any("error", err),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to redis: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("failed to connect to redis after %d retries: %w", attempts, err)
}
