package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, so the syncer binary also
// exposes the API metrics with zero values.

// namespace defines the global prefix for all metrics (e.g., tipsengine_...).
const namespace = "tipsengine"

// lowLatencyBuckets covers the tip generation path, which is CPU bound.
// Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// TIPS API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: tipsengine_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the tips API",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "route"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: tipsengine_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the tips API",
	}, []string{"method", "route", "code"})

	// TipsSelected observes how many tips a single request returned.
	TipsSelected = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "tips_selected",
		Help:      "Number of tips returned per request",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	// -------------------------------------------------------------------------
	// CATALOG
	// -------------------------------------------------------------------------

	// CatalogReloadsTotal counts reload attempts by source and outcome
	// (success, unchanged, invalid, error).
	CatalogReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "reloads_total",
		Help:      "Total catalog reload attempts",
	}, []string{"source", "status"})

	CatalogTips = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "tips_count",
		Help:      "Number of tips in the published catalog",
	})

	CatalogCompoundRules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "compound_rules_count",
		Help:      "Number of compound rules in the published catalog",
	})

	CatalogInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "invalidations_total",
		Help:      "Total catalog invalidation events received via PubSub",
	})

	// --- Expression cache (Otter) ---

	ExpressionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "expression_cache",
		Name:      "hits_total",
		Help:      "Total compiled expression cache hits",
	})

	ExpressionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "expression_cache",
		Name:      "misses_total",
		Help:      "Total compiled expression cache misses",
	})

	// ExpressionCacheUsage tracks the item count; S3-FIFO (Otter) does not
	// track byte size.
	ExpressionCacheUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "expression_cache",
		Name:      "items_count",
		Help:      "Current number of compiled expressions in the cache",
	})

	// ExpressionCacheDropped tracks sets rejected by the cache.
	ExpressionCacheDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "expression_cache",
		Name:      "dropped_total",
		Help:      "Total sets rejected by the expression cache",
	})

	// -------------------------------------------------------------------------
	// SYNCER (Workers)
	// -------------------------------------------------------------------------

	// SyncerRunDuration measures one Postgres to Redis propagation.
	// Metric: tipsengine_syncer_run_duration_seconds
	SyncerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "run_duration_seconds",
		Help:      "Time taken to propagate the catalog from Postgres to Redis",
		Buckets:   prometheus.DefBuckets,
	})

	SyncerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "runs_total",
		Help:      "Total propagation runs",
	}, []string{"status"}) // success, unchanged, fail

	// -------------------------------------------------------------------------
	// CONNECTION POOLS (sampled by the pool monitors)
	// -------------------------------------------------------------------------

	// DBPoolConnections reports pgxpool connection counts by state
	// (total, idle, in_use, max).
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Database pool connections by state",
	}, []string{"state"})

	DBPoolAcquireCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Total successful connection acquisitions",
	})

	DBPoolAcquireDuration = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Total time spent acquiring connections",
	})

	DBPoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Total acquisitions that had to wait for a connection",
	})

	// RedisPoolConnections reports go-redis pool counts by state
	// (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"})

	RedisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Total times a free connection was found in the pool",
	})

	RedisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Total times a free connection was not found in the pool",
	})

	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Total times a wait for a connection timed out",
	})
)
