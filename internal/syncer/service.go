// Package syncer implements the background worker that propagates the
// catalog from its source of truth (PostgreSQL) to the distribution layer
// (Redis).
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/observability"
)

// Status labels for observability.SyncerRunsTotal.
const (
	StatusSuccess   = "success"
	StatusUnchanged = "unchanged"
	StatusFail      = "fail"
)

// Reader is the source-of-truth side of a sync.
type Reader interface {
	Revision(ctx context.Context) (int64, error)
	LoadSnapshot(ctx context.Context) (catalog.Snapshot, error)
}

// Writer is the distribution side of a sync.
type Writer interface {
	SetSnapshotSafely(ctx context.Context, docs catalog.Documents, revision int64) (cache.SetResult, error)
}

// errInvalidCatalog marks failures that retrying cannot fix.
var errInvalidCatalog = errors.New("invalid catalog")

// Service orchestrates the synchronization process.
type Service struct {
	logger *slog.Logger
	config config.SyncerConfig
	reader Reader
	writer Writer

	mu        sync.Mutex
	published int64
	hasRun    bool
}

// New creates a new Syncer service.
func New(logger *slog.Logger, cfg config.SyncerConfig, reader Reader, writer Writer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reader == nil {
		panic("syncer: catalog reader cannot be nil")
	}
	if writer == nil {
		panic("syncer: snapshot writer cannot be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Second
	}

	return &Service{
		logger: logger,
		config: cfg,
		reader: reader,
		writer: writer,
	}
}

// Run starts the syncer loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service", slog.Duration("interval", s.config.Interval))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial sync failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping")
			return nil
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
				// Logged only; the next tick retries.
				s.logger.Error("sync cycle failed", slog.Any("error", err))
			}
		}
	}
}

// SyncOnce propagates the current catalog if its revision moved since the
// last successful run. Transient failures are retried with exponential
// backoff. It returns the status label it recorded.
func (s *Service) SyncOnce(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	status, err := s.syncWithRetry(ctx)
	observability.SyncerRunDuration.Observe(time.Since(start).Seconds())
	observability.SyncerRunsTotal.WithLabelValues(status).Inc()
	return status, err
}

func (s *Service) syncWithRetry(ctx context.Context) (string, error) {
	delay := s.config.BaseRetryDelay

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying sync",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return StatusFail, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		status, err := s.syncAttempt(ctx)
		if err == nil {
			return status, nil
		}
		if errors.Is(err, errInvalidCatalog) || ctx.Err() != nil {
			return StatusFail, err
		}
		lastErr = err
	}

	return StatusFail, fmt.Errorf("sync failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

func (s *Service) syncAttempt(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	rev, err := s.reader.Revision(ctx)
	if err != nil {
		return StatusFail, err
	}
	if s.hasRun && rev == s.published {
		return StatusUnchanged, nil
	}

	snap, err := s.reader.LoadSnapshot(ctx)
	if err != nil {
		return StatusFail, err
	}

	// Invalid catalogs are never published.
	if _, err := catalog.Build(snap.Documents); err != nil {
		return StatusFail, fmt.Errorf("%w at revision %d: %v", errInvalidCatalog, snap.Revision, err)
	}

	res, err := s.writer.SetSnapshotSafely(ctx, snap.Documents, snap.Revision)
	if err != nil {
		return StatusFail, err
	}

	s.published = snap.Revision
	s.hasRun = true

	if res == cache.SetResultSkipped {
		s.logger.Debug("snapshot already current", slog.Int64("revision", snap.Revision))
		return StatusUnchanged, nil
	}

	s.logger.Info("catalog snapshot published",
		slog.Int64("revision", snap.Revision),
		slog.String("result", res.String()),
	)
	return StatusSuccess, nil
}

// Published returns the last revision this service propagated.
func (s *Service) Published() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.hasRun
}
