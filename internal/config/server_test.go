package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should fail validation when TLS enabled without certificates",
			envVars: map[string]string{
				"TIPS_SERVER_TLS_ENABLED": "true",
			},
			wantErr: true,
		},
		{
			name: "Should pass validation when TLS properly configured with cert and key",
			envVars: map[string]string{
				"TIPS_SERVER_TLS_ENABLED":   "true",
				"TIPS_SERVER_TLS_CERT_FILE": "/certs/tls.crt",
				"TIPS_SERVER_TLS_KEY_FILE":  "/certs/tls.key",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.TLSEnabled)
				assert.Equal(t, "/certs/tls.crt", cfg.Server.TLSCert)
				assert.Equal(t, "/certs/tls.key", cfg.Server.TLSKey)
			},
		},
		{
			name: "Should fail validation when API key missing in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				delete(cfg, "TIPS_SERVER_API_KEY_HASH")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should fail validation when TLS disabled in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["TIPS_SERVER_TLS_ENABLED"] = "false"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should fail validation with invalid API key hash length",
			envVars: map[string]string{
				"TIPS_SERVER_API_KEY_HASH": "aaaaaa",
			},
			wantErr: true,
		},
		{
			name: "Should fail validation with non-hex API key hash",
			envVars: map[string]string{
				"TIPS_SERVER_API_KEY_HASH": "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", // 64 chars but not hex
			},
			wantErr: true,
		},
		{
			name: "Should accept an API key hash outside production",
			envVars: map[string]string{
				"TIPS_SERVER_API_KEY_HASH": "5dec7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.NotEmpty(t, cfg.Server.APIKeyHash)
			},
		},
		{
			name:    "Should fail validation with port 0",
			envVars: map[string]string{"TIPS_SERVER_PORT": "0"},
			wantErr: true,
		},
		{
			name:    "Should fail validation when MaxHeaderBytes is zero",
			envVars: map[string]string{"TIPS_SERVER_MAX_HEADER_BYTES": "0"},
			wantErr: true,
		},
		{
			name:    "Should fail validation when MaxBodyBytes is negative",
			envVars: map[string]string{"TIPS_SERVER_MAX_BODY_BYTES": "-100"},
			wantErr: true,
		},
		{
			name:    "Should fail validation with host containing leading whitespace",
			envVars: map[string]string{"TIPS_SERVER_HOST": " 0.0.0.0"},
			wantErr: true,
		},
		{
			name:    "Should fail validation with host containing trailing whitespace",
			envVars: map[string]string{"TIPS_SERVER_HOST": "0.0.0.0 "},
			wantErr: true,
		},
		{
			name:    "Should verify server timeout defaults",
			envVars: map[string]string{},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
				assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
				assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
				assert.Equal(t, 524288, cfg.Server.MaxHeaderBytes) // 512KB
				assert.Equal(t, int64(4194304), cfg.Server.MaxBodyBytes)
			},
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
