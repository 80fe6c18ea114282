package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{name: "Should accept a valid port", err: validatePort("8080", "server")},
		{name: "Should reject an empty port", err: validatePort("", "server"), wantErr: "server port cannot be empty"},
		{name: "Should reject port zero", err: validatePort("0", "redis"), wantErr: "between 1 and 65535, got 0"},
		{name: "Should reject a padded host", err: validateHost("db ", "database"), wantErr: "database host cannot contain whitespace"},
		{name: "Should reject an empty value", err: validateNoWhitespace("", "tips path"), wantErr: "tips path cannot be empty"},
		{name: "Should reject a short password", err: validatePasswordStrength("short", "redis"), wantErr: "at least 12 characters"},
		{name: "Should accept a long password", err: validatePasswordStrength("twelve-chars", "redis")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.wantErr == "" {
				assert.NoError(t, tt.err)
				return
			}
			assert.ErrorContains(t, tt.err, tt.wantErr)
		})
	}
}

func TestParseAndValidateURL(t *testing.T) {
	t.Parallel()

	schemes := []string{"redis", "rediss"}

	u, err := parseAndValidateURL("rediss://cache.internal:6380/2", schemes)
	if assert.NoError(t, err) {
		assert.Equal(t, "cache.internal:6380", u.Host)
	}

	_, err = parseAndValidateURL("http://cache.internal", schemes)
	assert.ErrorContains(t, err, "invalid scheme 'http'")

	_, err = parseAndValidateURL("redis:///0", schemes)
	assert.ErrorContains(t, err, "host is required")
}
