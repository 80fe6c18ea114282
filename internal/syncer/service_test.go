package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/tipsengine/internal/cache"
	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/testsupport"
)

type fakeReader struct {
	mu        sync.Mutex
	snap      catalog.Snapshot
	revErrs   []error
	loadCalls int
}

func (r *fakeReader) Revision(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.revErrs) > 0 {
		err := r.revErrs[0]
		r.revErrs = r.revErrs[1:]
		return 0, err
	}
	return r.snap.Revision, nil
}

func (r *fakeReader) LoadSnapshot(context.Context) (catalog.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadCalls++
	return r.snap, nil
}

func (r *fakeReader) set(rev int64, tipsJSON string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = catalog.Snapshot{Revision: rev, Documents: catalog.Documents{Tips: json.RawMessage(tipsJSON)}}
}

type fakeWriter struct {
	mu      sync.Mutex
	written []int64
	result  cache.SetResult
	err     error
}

func (w *fakeWriter) SetSnapshotSafely(_ context.Context, _ catalog.Documents, revision int64) (cache.SetResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return cache.SetResultSkipped, w.err
	}
	w.written = append(w.written, revision)
	return w.result, nil
}

func (w *fakeWriter) revisions() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int64(nil), w.written...)
}

func testConfig() config.SyncerConfig {
	return config.SyncerConfig{
		Interval:       10 * time.Millisecond,
		RunTimeout:     time.Second,
		MaxRetries:     2,
		BaseRetryDelay: time.Millisecond,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncOnce(t *testing.T) {
	t.Run("Should publish a new revision", func(t *testing.T) {
		r := &fakeReader{}
		r.set(1, `[{"id":"a"}]`)
		w := &fakeWriter{result: cache.SetResultUpdated}
		svc := New(discard(), testConfig(), r, w)

		testsupport.AssertMetricDelta(t, "tipsengine_syncer_runs_total", map[string]string{"status": StatusSuccess}, 1, func() {
			status, err := svc.SyncOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StatusSuccess, status)
		})
		assert.Equal(t, []int64{1}, w.revisions())

		rev, ok := svc.Published()
		assert.True(t, ok)
		assert.Equal(t, int64(1), rev)
	})

	t.Run("Should skip loading when the revision did not move", func(t *testing.T) {
		r := &fakeReader{}
		r.set(3, `[]`)
		w := &fakeWriter{result: cache.SetResultUpdated}
		svc := New(discard(), testConfig(), r, w)

		_, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)

		status, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusUnchanged, status)
		assert.Equal(t, 1, r.loadCalls)
		assert.Equal(t, []int64{3}, w.revisions())
	})

	t.Run("Should report unchanged when Redis already holds the revision", func(t *testing.T) {
		r := &fakeReader{}
		r.set(4, `[]`)
		svc := New(discard(), testConfig(), r, &fakeWriter{result: cache.SetResultSkipped})

		status, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusUnchanged, status)
	})

	t.Run("Should retry transient failures", func(t *testing.T) {
		r := &fakeReader{revErrs: []error{errors.New("conn reset"), errors.New("conn reset")}}
		r.set(2, `[]`)
		w := &fakeWriter{result: cache.SetResultUpdated}
		svc := New(discard(), testConfig(), r, w)

		status, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, status)
	})

	t.Run("Should give up after the retry budget", func(t *testing.T) {
		r := &fakeReader{revErrs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
		svc := New(discard(), testConfig(), r, &fakeWriter{})

		testsupport.AssertMetricDelta(t, "tipsengine_syncer_runs_total", map[string]string{"status": StatusFail}, 1, func() {
			status, err := svc.SyncOnce(context.Background())
			require.Error(t, err)
			assert.Equal(t, StatusFail, status)
		})
		_, ok := svc.Published()
		assert.False(t, ok)
	})

	t.Run("Should refuse invalid catalogs without retrying", func(t *testing.T) {
		r := &fakeReader{}
		r.set(5, `[{"id":"a","rules":[{"type":"ref","ref_id":"missing"}]}]`)
		w := &fakeWriter{result: cache.SetResultUpdated}
		svc := New(discard(), testConfig(), r, w)

		_, err := svc.SyncOnce(context.Background())
		require.ErrorIs(t, err, errInvalidCatalog)
		assert.Equal(t, 1, r.loadCalls)
		assert.Empty(t, w.revisions())
	})

	t.Run("Should stop retrying when the context is cancelled", func(t *testing.T) {
		r := &fakeReader{revErrs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
		cfg := testConfig()
		cfg.BaseRetryDelay = time.Hour
		svc := New(discard(), cfg, r, &fakeWriter{})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.SyncOnce(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRun_PublishesNewRevisions(t *testing.T) {
	r := &fakeReader{}
	r.set(1, `[]`)
	w := &fakeWriter{result: cache.SetResultUpdated}
	svc := New(discard(), testConfig(), r, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(w.revisions()) == 1 }, time.Second, 5*time.Millisecond)
	r.set(2, `[{"id":"b"}]`)
	require.Eventually(t, func() bool { return len(w.revisions()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("syncer did not stop")
	}
	assert.Equal(t, []int64{1, 2}, w.revisions())
}

func TestNew_Panics(t *testing.T) {
	assert.Panics(t, func() { New(nil, testConfig(), nil, &fakeWriter{}) })
	assert.Panics(t, func() { New(nil, testConfig(), &fakeReader{}, nil) })
}
