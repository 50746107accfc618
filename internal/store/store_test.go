package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/observability"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// countingSource counts fetches per timestamp and can be told to block or fail.
type countingSource struct {
	snaps   []*snapshot.Snapshot
	fetches []atomic.Int32
	gate    chan struct{}
	failFor atomic.Int32
}

func newCountingSource(snaps ...*snapshot.Snapshot) *countingSource {
	return &countingSource{snaps: snaps, fetches: make([]atomic.Int32, len(snaps))}
}

func (c *countingSource) Len() int { return len(c.snaps) }

func (c *countingSource) Fetch(ctx context.Context, t int) (*snapshot.Snapshot, error) {
	if err := snapshot.CheckIndex(t, len(c.snaps)); err != nil {
		return nil, err
	}
	c.fetches[t].Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.failFor.Load() > 0 {
		c.failFor.Add(-1)
		return nil, errors.New("archive offline")
	}
	return c.snaps[t], nil
}

func scenarios() []*snapshot.Snapshot {
	return []*snapshot.Snapshot{
		fixture.Scenario(500, 1000),
		fixture.Scenario(100, 1000),
		fixture.Scenario(900, 50),
		fixture.Chain(),
	}
}

func TestIdempotentAccess(t *testing.T) {
	src := newCountingSource(scenarios()...)
	s, err := New(src, Options{CacheSize: DefaultCacheSize, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	ctx := context.Background()

	r1, err := s.Raw(ctx, 0)
	require.NoError(t, err)
	r2, err := s.Raw(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	g1, err := s.Graph(ctx, 0)
	require.NoError(t, err)
	g2, err := s.Graph(ctx, 0)
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	idx, err := s.TypeIndex(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, idx["WAREHOUSE"], 2)

	assert.Equal(t, int32(1), src.fetches[0].Load())
}

func TestSingleFlight(t *testing.T) {
	src := newCountingSource(scenarios()...)
	src.gate = make(chan struct{})
	s, err := New(src, Options{})
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	results := make([]any, callers)
	errsOut := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := s.Graph(context.Background(), 1)
			results[i], errsOut[i] = g, err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errsOut[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), src.fetches[1].Load())
}

func TestEvictionRespectsBound(t *testing.T) {
	src := newCountingSource(scenarios()...)
	metrics := observability.NewCollector("store_test")
	s, err := New(src, Options{CacheSize: 2, Metrics: metrics})
	require.NoError(t, err)
	ctx := context.Background()

	for _, ts := range []int{0, 1, 2} {
		_, err := s.Raw(ctx, ts)
		require.NoError(t, err)
	}
	raw, _, _ := s.Cached()
	assert.Equal(t, 2, raw)

	_, err = s.Raw(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.fetches[0].Load())

	_, err = s.Raw(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.fetches[2].Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHits.WithLabelValues("raw")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("raw")))
}

func TestUnboundedKeepsEverything(t *testing.T) {
	src := newCountingSource(scenarios()...)
	s, err := New(src, Options{CacheSize: 0})
	require.NoError(t, err)

	for ts := 0; ts < src.Len(); ts++ {
		_, err := s.Graph(context.Background(), ts)
		require.NoError(t, err)
	}
	raw, graphs, _ := s.Cached()
	assert.Equal(t, 4, raw)
	assert.Equal(t, 4, graphs)

	s.Purge()
	raw, graphs, _ = s.Cached()
	assert.Zero(t, raw)
	assert.Zero(t, graphs)
}

func TestErrorsAreNotCached(t *testing.T) {
	src := newCountingSource(scenarios()...)
	src.failFor.Store(1)
	s, err := New(src, Options{})
	require.NoError(t, err)

	_, err = s.Graph(context.Background(), 0)
	var sue *errs.SourceUnavailableError
	require.ErrorAs(t, err, &sue)
	assert.Equal(t, 0, sue.Timestamp)

	g, err := s.Graph(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, int32(2), src.fetches[0].Load())
}

func TestSchemaMismatchKeepsRawCached(t *testing.T) {
	bad := fixture.Chain()
	bad.LinkValues["R"] = append(bad.LinkValues["R"], []any{"R", "A", "missing"})
	src := newCountingSource(bad)
	s, err := New(src, Options{})
	require.NoError(t, err)

	_, err = s.Graph(context.Background(), 0)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)

	_, err = s.Graph(context.Background(), 0)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)
	assert.Equal(t, int32(1), src.fetches[0].Load())
}

func TestOutOfRange(t *testing.T) {
	s, err := New(newCountingSource(scenarios()...), Options{})
	require.NoError(t, err)

	for _, ts := range []int{-1, 4, 100} {
		_, err := s.Raw(context.Background(), ts)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		_, err = s.Graph(context.Background(), ts)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		_, err = s.TypeIndex(context.Background(), ts)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	}
}

func TestCancelledCaller(t *testing.T) {
	src := newCountingSource(scenarios()...)
	src.gate = make(chan struct{})
	s, err := New(src, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = s.Raw(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(src.gate)
	snap, err := s.Raw(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	_, err = New(newCountingSource(), Options{CacheSize: -1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}
