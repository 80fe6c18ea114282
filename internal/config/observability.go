package config

import (
	"fmt"
	"strings"
	"time"
)

// ObservabilityConfig configures the server exposing probes and metrics on
// a port separate from the API.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes and a whole readiness probe.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	// CheckTimeout bounds a single component check inside the readiness probe.
	CheckTimeout time.Duration `envconfig:"CHECK_TIMEOUT" default:"2s" validate:"gt=0"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks the port, the per-check timeout and that the three paths
// are absolute and distinct.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}
	if o.CheckTimeout > o.Timeout {
		return fmt.Errorf("observability check timeout (%s) cannot exceed the probe timeout (%s)", o.CheckTimeout, o.Timeout)
	}

	seen := make(map[string]string, 3)
	for _, p := range []struct{ name, path string }{
		{"liveness", o.LivenessPath},
		{"readiness", o.ReadinessPath},
		{"metrics", o.MetricsPath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			return fmt.Errorf("observability %s path must start with '/', got %q", p.name, p.path)
		}
		if other, dup := seen[p.path]; dup {
			return fmt.Errorf("observability %s path %q is already used by the %s probe", p.name, p.path, other)
		}
		seen[p.path] = p.name
	}
	return nil
}
