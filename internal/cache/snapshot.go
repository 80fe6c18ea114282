// Package cache provides the Redis distribution layer for catalog snapshots
// and the in-process cache of compiled rule expressions.
package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/logger"
	"github.com/rafaeljc/tipsengine/internal/observability"
)

// ErrSnapshotNotFound is returned when no snapshot has been published yet.
var ErrSnapshotNotFound = errors.New("catalog snapshot not found")

// SetResult reports what SetSnapshotSafely did.
type SetResult int

const (
	// SetResultSkipped means the stored revision was equal or newer.
	SetResultSkipped SetResult = 0
	// SetResultUpdated means the snapshot was written and announced.
	SetResultUpdated SetResult = 1
	// SetResultRepaired means an unreadable value was overwritten.
	SetResultRepaired SetResult = 2
)

func (r SetResult) String() string {
	switch r {
	case SetResultSkipped:
		return "skipped"
	case SetResultUpdated:
		return "updated"
	case SetResultRepaired:
		return "repaired"
	default:
		return "unknown"
	}
}

// setSnapshotScript compares revisions, writes and publishes in one atomic step.
//
// KEYS[1] snapshot key
// ARGV[1] revision, ARGV[2] encoded snapshot, ARGV[3] invalidation channel
//
//go:embed set_snapshot.lua
var setSnapshotScriptSource string

var setSnapshotScript = redis.NewScript(setSnapshotScriptSource)

// SnapshotCache stores the latest catalog snapshot under a single key and
// announces every write on an invalidation channel.
type SnapshotCache struct {
	client  *redis.Client
	key     string
	channel string
}

var (
	_ catalog.Source        = (*SnapshotCache)(nil)
	_ observability.Checker = (*SnapshotCache)(nil)
)

// NewSnapshotCache creates a snapshot cache namespaced by keyPrefix.
func NewSnapshotCache(client *redis.Client, keyPrefix string) *SnapshotCache {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &SnapshotCache{
		client:  client,
		key:     keyPrefix + ":catalog:snapshot",
		channel: keyPrefix + ":catalog:invalidate",
	}
}

// Key returns the Redis key holding the snapshot.
func (c *SnapshotCache) Key() string { return c.key }

// Channel returns the PubSub channel used for invalidations.
func (c *SnapshotCache) Channel() string { return c.channel }

// Check pings Redis. A missing snapshot does not fail the check; readers
// report that through the catalog store instead.
func (c *SnapshotCache) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// SetSnapshotSafely writes docs at revision unless Redis already holds the
// same or a newer revision.
func (c *SnapshotCache) SetSnapshotSafely(ctx context.Context, docs catalog.Documents, revision int64) (SetResult, error) {
	payload, err := json.Marshal(docs)
	if err != nil {
		return SetResultSkipped, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	res, err := setSnapshotScript.Run(ctx, c.client,
		[]string{c.key},
		revision, encodeSnapshot(revision, payload), c.channel,
	).Int()
	if err != nil {
		return SetResultSkipped, fmt.Errorf("failed to set snapshot: %w", err)
	}
	return SetResult(res), nil
}

// GetSnapshot reads the stored snapshot.
func (c *SnapshotCache) GetSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	raw, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return catalog.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	rev, payload, ok := decodeSnapshot(raw)
	if !ok {
		return catalog.Snapshot{}, fmt.Errorf("snapshot at %s has no revision prefix", c.key)
	}

	snap := catalog.Snapshot{Revision: rev}
	if err := json.Unmarshal([]byte(payload), &snap.Documents); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Name identifies the cache as a catalog source.
func (c *SnapshotCache) Name() string { return "redis" }

// Load implements catalog.Source.
func (c *SnapshotCache) Load(ctx context.Context) (catalog.Documents, error) {
	snap, err := c.GetSnapshot(ctx)
	if err != nil {
		return catalog.Documents{}, err
	}
	return snap.Documents, nil
}

// Subscribe calls onInvalidate for every invalidation announced on the
// channel until ctx is done. Callback errors are logged and the
// subscription keeps running.
func (c *SnapshotCache) Subscribe(ctx context.Context, onInvalidate func(context.Context) error) error {
	log := logger.FromContext(ctx)

	pubsub := c.client.Subscribe(ctx, c.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so no message is missed
	// between returning and the first publish.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}
	log.Info("subscribed to catalog invalidations", slog.String("channel", c.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			observability.CatalogInvalidations.Inc()
			log.Debug("catalog invalidation received", slog.String("revision", msg.Payload))
			if err := onInvalidate(ctx); err != nil {
				log.Error("catalog invalidation handler failed", slog.Any("error", err))
			}
		}
	}
}

// revisionSearchLimit bounds the search for the separator. An int64 has at
// most 19 digits, so only the first 20 bytes can hold it.
const revisionSearchLimit = 20

// encodeSnapshot produces "revision|json".
func encodeSnapshot(revision int64, payload []byte) string {
	var b strings.Builder
	b.Grow(revisionSearchLimit + len(payload))
	b.WriteString(strconv.FormatInt(revision, 10))
	b.WriteByte('|')
	b.Write(payload)
	return b.String()
}

// decodeSnapshot splits "revision|json". ok is false when the value has no
// readable revision prefix.
func decodeSnapshot(raw string) (revision int64, payload string, ok bool) {
	head := raw
	if len(head) > revisionSearchLimit {
		head = head[:revisionSearchLimit]
	}
	idx := strings.IndexByte(head, '|')
	if idx <= 0 {
		return 0, "", false
	}
	rev, err := strconv.ParseInt(raw[:idx], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return rev, raw[idx+1:], true
}
