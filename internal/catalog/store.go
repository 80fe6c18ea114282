package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/tips"
)

// ErrNotLoaded is returned by Store.Current before the first successful load.
var ErrNotLoaded = errors.New("catalog not loaded")

// Source provides the raw configuration documents.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Load fetches the current documents.
	Load(ctx context.Context) (Documents, error)
}

// Store publishes the current catalog. Reads are lock-free; reloads are
// serialized and only replace the catalog when the new one builds cleanly.
type Store struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[tips.Catalog]
	reload  sync.Mutex
}

// NewStore creates an empty store backed by source. Call Reload before
// serving. It panics if source is nil.
// If logger is nil, it defaults to slog.Default().
func NewStore(source Source, logger *slog.Logger) *Store {
	if source == nil {
		panic("catalog: source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, logger: logger}
}

// Current returns the published catalog.
func (s *Store) Current() (*tips.Catalog, error) {
	c := s.current.Load()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c, nil
}

// Ready reports whether a catalog has been published.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Reload fetches and builds a new catalog and publishes it. On failure the
// previous catalog stays in place. It reports whether the version changed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	docs, err := s.source.Load(ctx)
	if err != nil {
		observability.CatalogReloadsTotal.WithLabelValues(s.source.Name(), "error").Inc()
		return false, fmt.Errorf("failed to load catalog from %s: %w", s.source.Name(), err)
	}

	previous := s.current.Load()
	if previous != nil && previous.Version == docs.Fingerprint() {
		observability.CatalogReloadsTotal.WithLabelValues(s.source.Name(), "unchanged").Inc()
		return false, nil
	}

	next, err := Build(docs)
	if err != nil {
		observability.CatalogReloadsTotal.WithLabelValues(s.source.Name(), "invalid").Inc()
		return false, fmt.Errorf("failed to build catalog from %s: %w", s.source.Name(), err)
	}

	s.current.Store(next)
	observability.CatalogReloadsTotal.WithLabelValues(s.source.Name(), "success").Inc()
	observability.CatalogTips.Set(float64(len(next.Tips)))
	observability.CatalogCompoundRules.Set(float64(len(next.Rules)))

	s.logger.Info("catalog published",
		slog.String("source", s.source.Name()),
		slog.String("catalog_version", next.Version),
		slog.Int("tips", len(next.Tips)),
		slog.Int("compound_rules", len(next.Rules)),
		slog.Int("enrichments", len(next.Enrichments)),
	)
	return true, nil
}

// Name implements observability.Checker.
func (s *Store) Name() string {
	return "catalog"
}

// Check implements observability.Checker.
func (s *Store) Check(context.Context) error {
	if !s.Ready() {
		return ErrNotLoaded
	}
	return nil
}

var _ observability.Checker = (*Store)(nil)
