package config

import "time"

// SyncerConfig contains configuration for the catalog syncer worker.
type SyncerConfig struct {
	// Interval between Postgres to Redis propagation runs.
	Interval time.Duration `envconfig:"INTERVAL" default:"30s" validate:"gt=0"`

	// RunTimeout bounds a single propagation run.
	RunTimeout     time.Duration `envconfig:"RUN_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"1s"`
}
