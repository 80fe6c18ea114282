package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const minProductionPasswordLength = 12

func validatePort(port, section string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", section)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", section, err)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", section, n)
	}
	return nil
}

func validateHost(host, section string) error {
	return validateNoWhitespace(host, section+" host")
}

// validateNoWhitespace rejects empty values and surrounding whitespace.
func validateNoWhitespace(value, field string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s cannot be empty", field)
	case strings.TrimSpace(value) != value:
		return fmt.Errorf("%s cannot contain whitespace", field)
	}
	return nil
}

// validatePasswordStrength is only applied to production settings.
func validatePasswordStrength(password, section string) error {
	if len(password) < minProductionPasswordLength {
		return fmt.Errorf("%s password must be at least %d characters in production", section, minProductionPasswordLength)
	}
	return nil
}

// parseAndValidateURL parses rawURL and requires a host and one of schemes.
func parseAndValidateURL(rawURL string, schemes []string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(schemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, schemes)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}
	return parsed, nil
}
