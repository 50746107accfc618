// Package app assembles the snapshot source, store and resolver described by
// a config.Config. Both binaries start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/capability"
	"github.com/systemshift/supplygraph/internal/config"
	"github.com/systemshift/supplygraph/internal/fulfillment"
	"github.com/systemshift/supplygraph/internal/observability"
	"github.com/systemshift/supplygraph/internal/server/archive"
	"github.com/systemshift/supplygraph/internal/snapshot"
	"github.com/systemshift/supplygraph/internal/store"
)

// retryInitial is the first backoff interval of the retrying source.
const retryInitial = 200 * time.Millisecond

// App is a wired store plus the resources it holds open.
type App struct {
	Source   snapshot.Source
	Store    *store.Store
	Resolver *fulfillment.Resolver
	Metrics  *observability.Collector

	closers []func() error
}

// Open builds the configured source, wraps it in retries and puts a store
// and resolver on top.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Metrics: observability.NewCollector("scgraph")}

	src, closeSrc, err := OpenSource(ctx, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	if closeSrc != nil {
		a.closers = append(a.closers, closeSrc)
	}
	a.Source = src

	a.Store, err = store.New(src, store.Options{
		CacheSize: cfg.CacheSize,
		Logger:    logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	table, err := OpenCapabilities(ctx, cfg.Capabilities)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = fulfillment.NewResolver(a.Store, table, logger)

	logger.Info("store ready",
		zap.String("source", cfg.Source.Kind),
		zap.Int("timestamps", src.Len()),
		zap.Int("cache_size", cfg.CacheSize))
	return a, nil
}

// Close releases everything Open acquired.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// OpenSource returns the configured snapshot source wrapped for retries. The
// returned close func is nil when nothing needs releasing.
func OpenSource(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (snapshot.Source, func() error, error) {
	var (
		src     snapshot.Source
		closeFn func() error
	)
	switch cfg.Kind {
	case config.SourceDir:
		dir, err := snapshot.OpenDir(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		src = dir
	case config.SourceHTTP:
		h, err := snapshot.NewHTTPSource(ctx, snapshot.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Version: cfg.Version,
			Timeout: cfg.Timeout,
		}, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		src = h
	case config.SourceS3:
		s, err := snapshot.NewS3Source(ctx, snapshot.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		src = s
	case config.SourceSQLite:
		db, err := archive.NewSQLite(ctx, cfg.ArchivePath, logger)
		if err != nil {
			return nil, nil, err
		}
		src, closeFn = db, db.Close
	default:
		return nil, nil, fmt.Errorf("unknown snapshot source %q", cfg.Kind)
	}

	if cfg.FetchRetries > 1 {
		src = snapshot.NewRetrying(src, cfg.FetchRetries, retryInitial, logger)
	}
	return src, closeFn, nil
}

// OpenCapabilities loads the configured supplier-capability table. A nil
// table means the resolver falls back to supplier nodes in the graph.
func OpenCapabilities(ctx context.Context, cfg config.CapabilityConfig) (capability.Table, error) {
	switch {
	case cfg.Driver != "":
		return capability.OpenSQL(ctx, cfg.Driver, cfg.DSN)
	case cfg.File != "":
		return capability.LoadYAML(cfg.File)
	default:
		return nil, nil
	}
}
