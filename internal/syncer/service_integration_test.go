//go:build integration

package syncer_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/store"
	"github.com/rafaeljc/tipsengine/internal/syncer"
	"github.com/rafaeljc/tipsengine/internal/testsupport"
)

// TestSyncer_Integration runs the full path: a catalog written to Postgres
// reaches Redis, and a subscribed catalog store reloads it.
func TestSyncer_Integration(t *testing.T) {
	ctx := context.Background()

	pgCtr, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pgCtr.Terminate(ctx)

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	repo := store.NewPostgresStore(pgCtr.DB)
	snapshots := cache.NewSnapshotCache(redisCtr.Client, "it")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := syncer.New(logger, config.SyncerConfig{
		Interval:       50 * time.Millisecond,
		RunTimeout:     5 * time.Second,
		MaxRetries:     1,
		BaseRetryDelay: 10 * time.Millisecond,
	}, repo, snapshots)

	// Consumer side: a catalog store fed by Redis invalidations.
	consumer := catalog.NewStore(snapshots, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() { _ = svc.Run(runCtx) }()
	go func() {
		_ = snapshots.Subscribe(runCtx, func(ctx context.Context) error {
			_, err := consumer.Reload(ctx)
			return err
		})
	}()

	t.Run("Should publish the initial empty catalog", func(t *testing.T) {
		require.Eventually(t, func() bool {
			snap, err := snapshots.GetSnapshot(ctx)
			return err == nil && snap.Revision == 0
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("Should propagate a replaced catalog to subscribers", func(t *testing.T) {
		rev, err := repo.ReplaceCatalog(ctx, catalog.Documents{
			Tips: json.RawMessage(`[{"id": "welcome", "active": true, "priority": 3}]`),
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			published, ok := svc.Published()
			return ok && published == rev
		}, 5*time.Second, 20*time.Millisecond)

		require.Eventually(t, func() bool {
			c, err := consumer.Current()
			return err == nil && len(c.Tips) == 1 && c.Tips[0].ID == "welcome"
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("Should be idempotent across repeated runs", func(t *testing.T) {
		status, err := svc.SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, syncer.StatusUnchanged, status)
	})
}
