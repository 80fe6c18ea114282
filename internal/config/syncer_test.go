package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncerConfig_Validation(t *testing.T) {
	runLoadCases(t, LoadSyncer, []loadCase{
		{
			name: "Should apply defaults",
			env:  mergeEnvVars(nil),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Syncer.Interval)
				assert.Equal(t, 10*time.Second, cfg.Syncer.RunTimeout)
				assert.Equal(t, 3, cfg.Syncer.MaxRetries)
				assert.Equal(t, time.Second, cfg.Syncer.BaseRetryDelay)
			},
		},
		{
			name: "Should load custom settings",
			env: mergeEnvVars(map[string]string{
				"TIPS_SYNCER_INTERVAL":         "1m",
				"TIPS_SYNCER_RUN_TIMEOUT":      "20s",
				"TIPS_SYNCER_MAX_RETRIES":      "5",
				"TIPS_SYNCER_BASE_RETRY_DELAY": "2s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Minute, cfg.Syncer.Interval)
				assert.Equal(t, 20*time.Second, cfg.Syncer.RunTimeout)
				assert.Equal(t, 5, cfg.Syncer.MaxRetries)
				assert.Equal(t, 2*time.Second, cfg.Syncer.BaseRetryDelay)
			},
		},
		{
			name:    "Should reject a zero interval",
			env:     mergeEnvVars(map[string]string{"TIPS_SYNCER_INTERVAL": "0s"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject a zero run timeout",
			env:     mergeEnvVars(map[string]string{"TIPS_SYNCER_RUN_TIMEOUT": "0s"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject negative retries",
			env:     mergeEnvVars(map[string]string{"TIPS_SYNCER_MAX_RETRIES": "-5"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject an unparsable interval",
			env:     mergeEnvVars(map[string]string{"TIPS_SYNCER_INTERVAL": "soon"}),
			wantErr: "failed to process environment variables",
		},
	})
}
