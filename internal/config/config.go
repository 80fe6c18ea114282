// Package config provides centralized configuration management for the tips services.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // embedded zoneinfo fallback

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"

	// envPrefix is prepended to every environment variable name.
	envPrefix = "TIPS"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Catalog       CatalogConfig       `envconfig:"CATALOG"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Syncer        SyncerConfig        `envconfig:"SYNCER"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"tipsengine"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Timezone determines "today" for the tip activation window.
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`
}

// Location resolves the configured timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from environment variables with the TIPS prefix.
// The database and Redis sections are only validated when the catalog
// source needs them.
func Load() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadSyncer is like Load but also requires the database, Redis and
// syncer sections.
func LoadSyncer() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateSyncer(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func process() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the sections the tips API needs. The database and Redis
// sections only count when the catalog source reads from them.
func (c *Config) Validate() error {
	checks := []func() error{
		func() error {
			_, err := c.App.Location()
			return err
		},
		func() error { return c.Server.Validate(c.App.Environment) },
		c.Catalog.Validate,
	}
	switch c.Catalog.Source {
	case CatalogSourcePostgres:
		checks = append(checks, func() error { return c.Database.Validate(c.App.Environment) })
	case CatalogSourceRedis:
		checks = append(checks, func() error { return c.Redis.Validate(c.App.Environment) })
	}
	return c.run(append(checks, c.Observability.Validate))
}

// ValidateSyncer checks the sections the syncer worker needs.
func (c *Config) ValidateSyncer() error {
	return c.run([]func() error{
		func() error { return c.Database.Validate(c.App.Environment) },
		func() error { return c.Redis.Validate(c.App.Environment) },
		c.Observability.Validate,
	})
}

// run applies the struct tags first, then checks in order, stopping at the
// first failure.
func (c *Config) run(checks []func() error) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.String("timezone", c.App.Timezone),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("server_port", c.Server.Port),
		slog.Bool("tls_enabled", c.Server.TLSEnabled),
		slog.Bool("admin_enabled", c.Server.APIKeyHash != ""),
		slog.String("catalog_source", c.Catalog.Source),
		slog.Bool("catalog_watch", c.Catalog.Watch),
		slog.Duration("catalog_refresh_interval", c.Catalog.RefreshInterval),
		slog.String("observability_port", c.Observability.Port),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_configured", c.Redis.IsConfigured()),
	)
}
