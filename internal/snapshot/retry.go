package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/errs"
)

// Retrying retries SourceUnavailable failures of an inner source with
// exponential backoff. Other errors (bad index, cancellation) are returned
// on the first attempt.
type Retrying struct {
	inner    Source
	maxTries uint
	initial  time.Duration
	logger   *zap.Logger
}

// NewRetrying wraps inner. maxTries of 0 or 1 disables retrying.
func NewRetrying(inner Source, maxTries uint, initial time.Duration, logger *zap.Logger) *Retrying {
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{inner: inner, maxTries: maxTries, initial: initial, logger: logger.Named("retry")}
}

func (r *Retrying) Len() int { return r.inner.Len() }

func (r *Retrying) Fetch(ctx context.Context, t int) (*Snapshot, error) {
	if r.maxTries <= 1 {
		return r.inner.Fetch(ctx, t)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial

	snap, err := backoff.Retry(ctx, func() (*Snapshot, error) {
		s, err := r.inner.Fetch(ctx, t)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, errs.ErrSourceUnavailable) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("snapshot fetch failed, retrying",
				zap.Int("timestamp", t),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidArgument) {
			return nil, err
		}
		return nil, errs.Unavailable(t, err)
	}
	return snap, nil
}
