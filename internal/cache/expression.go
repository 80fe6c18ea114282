package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/tipsengine/internal/observability"
	"github.com/rafaeljc/tipsengine/internal/query"
	"github.com/rafaeljc/tipsengine/internal/ruleengine"
)

var _ ruleengine.ExpressionCache = (*ExpressionCache)(nil)

// ExpressionCache keeps compiled path-query expressions keyed by their
// source text, using the contention-free S3-FIFO cache from otter.
// Entries never go stale, since equal source always compiles to an equal
// expression; the TTL only bounds memory held by retired rules.
type ExpressionCache struct {
	store otter.Cache[string, *query.Expr]
}

// NewExpressionCache initializes the cache with a hard item cap and TTL.
func NewExpressionCache(capacity int, ttl time.Duration) (*ExpressionCache, error) {
	store, err := otter.MustBuilder[string, *query.Expr](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &ExpressionCache{store: store}, nil
}

// Get returns the compiled expression for source.
func (c *ExpressionCache) Get(source string) (*query.Expr, bool) {
	expr, ok := c.store.Get(source)
	if ok {
		observability.ExpressionCacheHits.Inc()
	} else {
		observability.ExpressionCacheMisses.Inc()
	}
	return expr, ok
}

// Set stores a compiled expression.
func (c *ExpressionCache) Set(source string, expr *query.Expr) {
	if !c.store.Set(source, expr) {
		observability.ExpressionCacheDropped.Inc()
	}
}

// Len returns the current number of cached expressions.
func (c *ExpressionCache) Len() int {
	return c.store.Size()
}

// RunMetricsCollector updates the usage gauge every interval until ctx is done.
func (c *ExpressionCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.ExpressionCacheUsage.Set(float64(c.store.Size()))
		}
	}
}

// Close stops the cache's background goroutines.
func (c *ExpressionCache) Close() {
	c.store.Close()
}
