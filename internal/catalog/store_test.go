package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/tipsengine/internal/testsupport"
)

// stubSource returns whatever documents or error it currently holds.
type stubSource struct {
	mu    sync.Mutex
	docs  Documents
	err   error
	loads int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(context.Context) (Documents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.docs, s.err
}

func (s *stubSource) set(d Documents, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs, s.err = d, err
}

func TestStore_CurrentBeforeLoad(t *testing.T) {
	t.Parallel()

	s := NewStore(&stubSource{}, nil)

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, s.Ready())
	assert.ErrorIs(t, s.Check(context.Background()), ErrNotLoaded)
}

func TestStore_Reload(t *testing.T) {
	src := &stubSource{docs: docs(tipsDoc, rulesDoc, enrichmentsDoc)}
	var buf bytes.Buffer
	s := NewStore(src, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	t.Run("Should publish the first catalog", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "tipsengine_catalog_reloads_total", map[string]string{"source": "stub", "status": "success"}, 1, func() {
			changed, err := s.Reload(ctx)
			require.NoError(t, err)
			assert.True(t, changed)
		})

		c, err := s.Current()
		require.NoError(t, err)
		assert.Len(t, c.Tips, 3)
		assert.NoError(t, s.Check(ctx))
		assert.Contains(t, buf.String(), "catalog published")
		assert.Equal(t, 3.0, testsupport.GetMetricValue(t, "tipsengine_catalog_tips_count", nil))
	})

	t.Run("Should report unchanged documents", func(t *testing.T) {
		before, _ := s.Current()

		changed, err := s.Reload(ctx)
		require.NoError(t, err)
		assert.False(t, changed)

		after, _ := s.Current()
		assert.Same(t, before, after)
	})

	t.Run("Should keep the previous catalog when the new one is invalid", func(t *testing.T) {
		before, _ := s.Current()
		src.set(docs(`[{"id": "t", "rules": [{"type": "ref", "ref_id": "missing"}]}]`, `{}`, ``), nil)

		changed, err := s.Reload(ctx)
		assert.Error(t, err)
		assert.False(t, changed)

		after, _ := s.Current()
		assert.Same(t, before, after)
	})

	t.Run("Should keep the previous catalog when the source fails", func(t *testing.T) {
		before, _ := s.Current()
		src.set(Documents{}, errors.New("boom"))

		_, err := s.Reload(ctx)
		assert.ErrorContains(t, err, "boom")

		after, _ := s.Current()
		assert.Same(t, before, after)
	})

	t.Run("Should publish a changed catalog", func(t *testing.T) {
		src.set(docs(`[{"id": "only", "active": true}]`, ``, ``), nil)

		changed, err := s.Reload(ctx)
		require.NoError(t, err)
		assert.True(t, changed)

		c, _ := s.Current()
		require.Len(t, c.Tips, 1)
		assert.Equal(t, "only", string(c.Tips[0].ID))
	})
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	t.Parallel()

	src := &stubSource{docs: docs(tipsDoc, rulesDoc, enrichmentsDoc)}
	s := NewStore(src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := s.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 50 {
				if i%2 == 0 {
					_, _ = s.Reload(context.Background())
					continue
				}
				c, err := s.Current()
				assert.NoError(t, err)
				assert.NotNil(t, c)
			}
		}(i)
	}
	wg.Wait()
}

func TestNewStore_NilSourcePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewStore(nil, nil) })
}
