package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RedisConfig locates the Redis instance holding the catalog snapshot.
// URL wins over the individual components when both are set.
type RedisConfig struct {
	URL        string `envconfig:"URL"`
	Host       string `envconfig:"HOST"`
	Port       string `envconfig:"PORT"`
	Password   string `envconfig:"PASSWORD"`
	DB         int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`
	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`

	// go-redis pool and retry settings
	PoolSize        int           `envconfig:"POOL_SIZE" default:"50" validate:"min=1"`
	MinIdleConns    int           `envconfig:"MIN_IDLE_CONNS" default:"10" validate:"min=0"`
	DialTimeout     time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	PoolTimeout     time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	MinRetryBackoff time.Duration `envconfig:"MIN_RETRY_BACKOFF" default:"8ms"`
	MaxRetryBackoff time.Duration `envconfig:"MAX_RETRY_BACKOFF" default:"512ms"`

	// KeyPrefix namespaces the catalog snapshot key and the invalidation channel.
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"tipsengine" validate:"required"`

	// Startup ping, doubled backoff between attempts.
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`

	// PoolMonitorInterval is how often pool statistics are sampled into metrics.
	PoolMonitorInterval time.Duration `envconfig:"POOL_MONITOR_INTERVAL" default:"15s" validate:"gt=0"`
}

// Address returns host:port built from the components. Clients parse URL
// themselves when it is set.
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *RedisConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "")
}

// Validate checks the connection settings. Production additionally
// requires a strong password and TLS, also when the connection is given as
// a URL (rediss://).
func (c *RedisConfig) Validate(environment string) error {
	prod := environment == EnvironmentProduction

	if c.URL != "" {
		if err := c.validateURL(prod); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	} else if err := c.validateComponents(prod); err != nil {
		return err
	}

	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("min_idle_conns (%d) cannot be greater than pool_size (%d)", c.MinIdleConns, c.PoolSize)
	}
	return nil
}

func (c *RedisConfig) validateComponents(prod bool) error {
	if err := validateHost(c.Host, "redis"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "redis"); err != nil {
		return err
	}

	if !prod {
		return nil
	}
	if c.Password == "" {
		return fmt.Errorf("redis password is required in production environment")
	}
	if err := validatePasswordStrength(c.Password, "redis"); err != nil {
		return err
	}
	if !c.TLSEnabled {
		return fmt.Errorf("redis TLS must be enabled in production environment")
	}
	return nil
}

func (c *RedisConfig) validateURL(prod bool) error {
	parsed, err := parseAndValidateURL(c.URL, []string{"redis", "rediss"})
	if err != nil {
		return err
	}

	// The optional path selects the logical database.
	if db := strings.TrimPrefix(parsed.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("database number must be a valid integer: %s", db)
		}
		if n < 0 || n > 15 {
			return fmt.Errorf("database number must be between 0 and 15, got %d", n)
		}
	}

	if prod && parsed.Scheme != "rediss" {
		return fmt.Errorf("rediss:// is required in production environment")
	}
	return nil
}
