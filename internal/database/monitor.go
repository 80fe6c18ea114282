package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/tipsengine/internal/observability"
)

// RunPoolMonitor samples pool statistics into Prometheus until ctx is done.
// Cumulative pgxpool counters are exported as deltas so the metrics stay
// monotonic counters.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last poolCounters
	for {
		last = recordPoolStats(pool.Stat(), last)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type poolCounters struct {
	acquires int64
	waits    int64
	acquire  time.Duration
}

func recordPoolStats(s *pgxpool.Stat, last poolCounters) poolCounters {
	observability.DBPoolConnections.WithLabelValues("max").Set(float64(s.MaxConns()))
	observability.DBPoolConnections.WithLabelValues("total").Set(float64(s.TotalConns()))
	observability.DBPoolConnections.WithLabelValues("idle").Set(float64(s.IdleConns()))
	observability.DBPoolConnections.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))

	cur := poolCounters{
		acquires: s.AcquireCount(),
		waits:    s.EmptyAcquireCount(),
		acquire:  s.AcquireDuration(),
	}
	if d := cur.acquires - last.acquires; d > 0 {
		observability.DBPoolAcquireCount.Add(float64(d))
	}
	if d := cur.waits - last.waits; d > 0 {
		observability.DBPoolWaitCount.Add(float64(d))
	}
	if d := cur.acquire - last.acquire; d > 0 {
		observability.DBPoolAcquireDuration.Add(d.Seconds())
	}
	return cur
}
