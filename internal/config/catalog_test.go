package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should verify catalog defaults",
			envVars: map[string]string{},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "config/tips.json", cfg.Catalog.TipsPath)
				assert.Equal(t, "config/compound_rules.json", cfg.Catalog.RulesPath)
				assert.Equal(t, "config/enrichments.json", cfg.Catalog.EnrichmentsPath)
				assert.True(t, cfg.Catalog.Watch)
				assert.Equal(t, 250*time.Millisecond, cfg.Catalog.WatchDebounce)
				assert.Zero(t, cfg.Catalog.RefreshInterval)
				assert.Equal(t, 10000, cfg.Catalog.ExpressionCacheCapacity)
				assert.Equal(t, time.Hour, cfg.Catalog.ExpressionCacheTTL)
			},
		},
		{
			name:    "Should fail validation on unknown source",
			envVars: map[string]string{"TIPS_CATALOG_SOURCE": "s3"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on empty tips path for the file source",
			envVars: map[string]string{"TIPS_CATALOG_TIPS_PATH": " "},
			wantErr: true,
		},
		{
			name:    "Should fail validation on negative refresh interval",
			envVars: map[string]string{"TIPS_CATALOG_REFRESH_INTERVAL": "-1s"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on zero watch debounce",
			envVars: map[string]string{"TIPS_CATALOG_WATCH_DEBOUNCE": "0s"},
			wantErr: true,
		},
		{
			name: "Should ignore the debounce when watching is disabled",
			envVars: map[string]string{
				"TIPS_CATALOG_WATCH":          "false",
				"TIPS_CATALOG_WATCH_DEBOUNCE": "0s",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Catalog.Watch)
			},
		},
		{
			name:    "Should fail validation on zero expression cache capacity",
			envVars: map[string]string{"TIPS_CATALOG_EXPRESSION_CACHE_CAPACITY": "0"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on zero expression cache TTL",
			envVars: map[string]string{"TIPS_CATALOG_EXPRESSION_CACHE_TTL": "0s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
