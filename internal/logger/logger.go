// Package logger builds the slog loggers of the tips services and carries
// request-scoped loggers through context.Context.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rafaeljc/tipsengine/internal/config"
)

// Formats accepted in AppConfig.LogFormat.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns the service logger writing to stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns the service logger writing to w.
//
// Every record carries the service, version and env attributes. Unknown
// formats fall back to JSON. Source locations are added outside production.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.LogLevel),
		AddSource: cfg.Environment != config.EnvironmentProduction,
	}

	return slog.New(newHandler(cfg.LogFormat, w, opts)).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, FormatText) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps a level name in any case to a slog.Level. Unknown names
// mean info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
