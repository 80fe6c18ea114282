package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

var secureSSLModes = []string{"require", "verify-ca", "verify-full"}

// DatabaseConfig locates the Postgres database holding the catalog tables.
// URL wins over the individual components when both are set.
type DatabaseConfig struct {
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// pgxpool settings
	MaxConns        int           `envconfig:"MAX_CONNS" default:"25" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	// Startup ping, doubled backoff between attempts.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`

	// PoolMonitorInterval is how often pool statistics are sampled into metrics.
	PoolMonitorInterval time.Duration `envconfig:"POOL_MONITOR_INTERVAL" default:"15s" validate:"gt=0"`
}

// ConnectionString returns URL, or a postgres:// DSN assembled from the
// components with credentials escaped.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

// Validate checks the connection settings. Production additionally
// requires a strong password and an encrypting SSL mode, also when the
// connection is given as a URL.
func (c *DatabaseConfig) Validate(environment string) error {
	prod := environment == EnvironmentProduction

	if c.URL != "" {
		if err := c.validateURL(prod); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	} else if err := c.validateComponents(prod); err != nil {
		return err
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

func (c *DatabaseConfig) validateComponents(prod bool) error {
	if err := validateHost(c.Host, "database"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "database"); err != nil {
		return err
	}
	if err := validateNoWhitespace(c.Name, "database name"); err != nil {
		return err
	}
	if len(c.Name) > 63 {
		return fmt.Errorf("database name cannot exceed 63 characters")
	}
	if err := validateNoWhitespace(c.User, "database user"); err != nil {
		return err
	}

	if !prod {
		return nil
	}
	if c.Password == "" {
		return fmt.Errorf("database password is required in production environment")
	}
	if err := validatePasswordStrength(c.Password, "database"); err != nil {
		return err
	}
	if !slices.Contains(secureSSLModes, c.SSLMode) {
		return fmt.Errorf("database SSL mode must be one of %v in production environment", secureSSLModes)
	}
	return nil
}

func (c *DatabaseConfig) validateURL(prod bool) error {
	parsed, err := parseAndValidateURL(c.URL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	if prod && !slices.Contains(secureSSLModes, parsed.Query().Get("sslmode")) {
		return fmt.Errorf("sslmode must be one of %v in production environment", secureSSLModes)
	}
	return nil
}
