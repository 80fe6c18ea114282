package config

import (
	"fmt"
	"time"
)

// Catalog sources.
const (
	CatalogSourceFile     = "file"
	CatalogSourcePostgres = "postgres"
	CatalogSourceRedis    = "redis"
)

// CatalogConfig selects where the tip catalog comes from and how it is kept fresh.
type CatalogConfig struct {
	Source string `envconfig:"SOURCE" default:"file" validate:"oneof=file postgres redis"`

	// File source
	TipsPath        string        `envconfig:"TIPS_PATH" default:"config/tips.json"`
	RulesPath       string        `envconfig:"RULES_PATH" default:"config/compound_rules.json"`
	EnrichmentsPath string        `envconfig:"ENRICHMENTS_PATH" default:"config/enrichments.json"`
	Watch           bool          `envconfig:"WATCH" default:"true"`
	WatchDebounce   time.Duration `envconfig:"WATCH_DEBOUNCE" default:"250ms"`

	// RefreshInterval reloads the catalog periodically. Zero disables it.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s"`

	// Compiled expression cache
	ExpressionCacheCapacity int           `envconfig:"EXPRESSION_CACHE_CAPACITY" default:"10000" validate:"min=1"`
	ExpressionCacheTTL      time.Duration `envconfig:"EXPRESSION_CACHE_TTL" default:"1h"`
}

// Validate checks CatalogConfig fields for correctness.
func (c *CatalogConfig) Validate() error {
	if c.RefreshInterval < 0 {
		return fmt.Errorf("catalog refresh interval cannot be negative")
	}
	if c.ExpressionCacheTTL <= 0 {
		return fmt.Errorf("expression cache TTL must be positive")
	}

	if c.Source != CatalogSourceFile {
		return nil
	}

	for name, path := range map[string]string{
		"catalog tips path":        c.TipsPath,
		"catalog rules path":       c.RulesPath,
		"catalog enrichments path": c.EnrichmentsPath,
	} {
		if err := validateNoWhitespace(path, name); err != nil {
			return err
		}
	}
	if c.Watch && c.WatchDebounce <= 0 {
		return fmt.Errorf("catalog watch debounce must be positive")
	}
	return nil
}
