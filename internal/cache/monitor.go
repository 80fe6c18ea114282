package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/tipsengine/internal/observability"
)

// RunPoolMonitor samples the go-redis pool statistics into Prometheus until
// ctx is done. Cumulative counters are exported as deltas.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last redis.PoolStats
	for {
		cur := client.PoolStats()
		observability.RedisPoolConnections.WithLabelValues("total").Set(float64(cur.TotalConns))
		observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(cur.IdleConns))
		observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(cur.StaleConns))

		if cur.Hits > last.Hits {
			observability.RedisPoolHits.Add(float64(cur.Hits - last.Hits))
		}
		if cur.Misses > last.Misses {
			observability.RedisPoolMisses.Add(float64(cur.Misses - last.Misses))
		}
		if cur.Timeouts > last.Timeouts {
			observability.RedisPoolTimeouts.Add(float64(cur.Timeouts - last.Timeouts))
		}
		last = *cur

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
