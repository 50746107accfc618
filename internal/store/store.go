// Package store is the per-timestamp memoisation layer over a snapshot
// source. It caches raw snapshots, built graphs and type indexes in bounded
// LRU caches and de-duplicates concurrent construction of the same entry.
//
// A value published for a timestamp is never replaced while it stays cached,
// so readers may hold on to it freely. Failures are returned to every waiting
// caller and are never cached.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/normalize"
	"github.com/systemshift/supplygraph/internal/observability"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// DefaultCacheSize is the number of timestamps kept per cache.
const DefaultCacheSize = 10

// maxRejoin bounds how often a caller retries after a cancelled leader.
const maxRejoin = 2

const (
	kindRaw   = "raw"
	kindGraph = "graph"
	kindIndex = "index"
)

// Options configure a Store.
type Options struct {
	// CacheSize bounds each cache. Zero keeps every timestamp of the source.
	CacheSize int
	Logger    *zap.Logger
	Metrics   *observability.Collector
}

// Store serves raw snapshots, graphs and type indexes by timestamp index.
type Store struct {
	src     snapshot.Source
	raw     *lru.Cache[int, *snapshot.Snapshot]
	graphs  *lru.Cache[int, *propgraph.Graph]
	indexes *lru.Cache[int, normalize.TypeIndex]
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Collector
}

// New creates a store over src.
func New(src snapshot.Source, opts Options) (*Store, error) {
	if src == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if opts.CacheSize < 0 {
		return nil, errs.InvalidArgument("cache size must not be negative, got %d", opts.CacheSize)
	}
	size := opts.CacheSize
	if size == 0 {
		size = max(src.Len(), 1)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := lru.New[int, *snapshot.Snapshot](size)
	if err != nil {
		return nil, fmt.Errorf("creating raw cache: %w", err)
	}
	graphs, err := lru.New[int, *propgraph.Graph](size)
	if err != nil {
		return nil, fmt.Errorf("creating graph cache: %w", err)
	}
	indexes, err := lru.New[int, normalize.TypeIndex](size)
	if err != nil {
		return nil, fmt.Errorf("creating index cache: %w", err)
	}

	return &Store{
		src:     src,
		raw:     raw,
		graphs:  graphs,
		indexes: indexes,
		logger:  logger.Named("store"),
		metrics: opts.Metrics,
	}, nil
}

// Len returns the number of timestamps the source provides.
func (s *Store) Len() int { return s.src.Len() }

// Raw returns the snapshot for timestamp t, fetching it on first use.
func (s *Store) Raw(ctx context.Context, t int) (*snapshot.Snapshot, error) {
	if err := snapshot.CheckIndex(t, s.src.Len()); err != nil {
		return nil, err
	}
	return load(ctx, s, s.raw, kindRaw, t, func(ctx context.Context) (*snapshot.Snapshot, error) {
		start := time.Now()
		snap, err := s.src.Fetch(ctx, t)
		s.metrics.RecordFetch(time.Since(start), err)
		if err != nil {
			if errors.Is(err, errs.ErrInvalidArgument) {
				return nil, err
			}
			return nil, errs.Unavailable(t, err)
		}
		if snap == nil {
			return nil, errs.Unavailable(t, fmt.Errorf("source returned no snapshot"))
		}
		return snap, nil
	})
}

// Graph returns the property graph for timestamp t, building it from the
// cached snapshot on first use.
func (s *Store) Graph(ctx context.Context, t int) (*propgraph.Graph, error) {
	if err := snapshot.CheckIndex(t, s.src.Len()); err != nil {
		return nil, err
	}
	return load(ctx, s, s.graphs, kindGraph, t, func(ctx context.Context) (*propgraph.Graph, error) {
		snap, err := s.Raw(ctx, t)
		if err != nil {
			return nil, err
		}
		return normalize.Build(snap)
	})
}

// TypeIndex returns the node type index for timestamp t. It is built from
// the raw snapshot, independently of Graph.
func (s *Store) TypeIndex(ctx context.Context, t int) (normalize.TypeIndex, error) {
	if err := snapshot.CheckIndex(t, s.src.Len()); err != nil {
		return nil, err
	}
	return load(ctx, s, s.indexes, kindIndex, t, func(ctx context.Context) (normalize.TypeIndex, error) {
		snap, err := s.Raw(ctx, t)
		if err != nil {
			return nil, err
		}
		return normalize.BuildTypeIndex(snap)
	})
}

// Purge drops every cached entry. Values already handed out stay valid.
func (s *Store) Purge() {
	s.raw.Purge()
	s.graphs.Purge()
	s.indexes.Purge()
}

// Cached reports how many timestamps each cache currently holds.
func (s *Store) Cached() (raw, graphs, indexes int) {
	return s.raw.Len(), s.graphs.Len(), s.indexes.Len()
}

func load[V any](ctx context.Context, s *Store, cache *lru.Cache[int, V], kind string, t int, build func(context.Context) (V, error)) (V, error) {
	var zero V
	key := fmt.Sprintf("%s:%d", kind, t)

	for attempt := 0; ; attempt++ {
		if v, ok := cache.Get(t); ok {
			s.metrics.CacheHit(kind)
			return v, nil
		}
		s.metrics.CacheMiss(kind)

		ch := s.group.DoChan(key, func() (interface{}, error) {
			if v, ok := cache.Get(t); ok {
				return v, nil
			}
			start := time.Now()
			v, err := build(ctx)
			s.metrics.RecordBuild(kind, time.Since(start), err)
			if err != nil {
				s.logger.Debug("build failed", zap.String("kind", kind), zap.Int("timestamp", t), zap.Error(err))
				return nil, err
			}
			if prev, ok, _ := cache.PeekOrAdd(t, v); ok {
				return prev, nil
			}
			s.logger.Debug("built", zap.String("kind", kind), zap.Int("timestamp", t),
				zap.Duration("took", time.Since(start)))
			return v, nil
		})

		select {
		case <-ctx.Done():
			return zero, errs.Unavailable(t, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// The leader's context ended but ours did not; try again as leader.
				if isContextErr(res.Err) && ctx.Err() == nil && attempt < maxRejoin {
					continue
				}
				return zero, res.Err
			}
			return res.Val.(V), nil
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
