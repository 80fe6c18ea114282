package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/tipsengine/internal/validation"
)

// Reloader is implemented by Store.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Refresher reloads the catalog on a fixed interval.
type Refresher struct {
	reloader Reloader
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher. It panics if reloader is nil or the
// interval is not positive.
// If logger is nil, it defaults to slog.Default().
func NewRefresher(reloader Reloader, interval time.Duration, logger *slog.Logger) *Refresher {
	if reloader == nil {
		panic("catalog: reloader cannot be nil")
	}
	validation.AssertPositive(interval, "catalog: refresh interval")
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{reloader: reloader, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. Failed reloads are logged and the
// previous catalog stays published.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("catalog refresher started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("catalog refresher stopped")
			return
		case <-ticker.C:
			changed, err := r.reloader.Reload(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("periodic catalog reload failed", slog.String("error", err.Error()))
				continue
			}
			if changed {
				r.logger.Debug("periodic catalog reload applied")
			}
		}
	}
}

var _ Reloader = (*Store)(nil)
