package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/gamebot/internal/domain/level"
	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

// Default merger configuration constants.
const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// Option applies a configuration option to the Merger.
type Option func(*Merger)

// WithMaxAttempts bounds how many times one increment is tried.
func WithMaxAttempts(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithRetryIntervals sets the exponential backoff bounds between attempts.
func WithRetryIntervals(initial, maxInterval time.Duration) Option {
	return func(m *Merger) {
		if initial > 0 && maxInterval >= initial {
			m.initialInterval = initial
			m.maxInterval = maxInterval
		}
	}
}

// WithLogger sets a custom logger for the merger.
func WithLogger(l logger.Logger) Option {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// Merger applies increments to the ledger through a Store.
type Merger struct {
	store           Store
	levelOf         LevelFunc
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          logger.Logger
}

// NewMerger creates a Merger backed by store.
func NewMerger(store Store, opts ...Option) *Merger {
	m := &Merger{
		store:           store,
		levelOf:         level.Of,
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		logger:          logger.Named("ledger"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge adds inc to the entry for key, creating it when absent.
//
// A failed attempt is retried with the same increment: the store applies
// all fields or none, so a retry cannot double count. Once attempts are
// exhausted the error wraps ErrWriteFailed and the caller should treat the
// delivery as not applied.
func (m *Merger) Merge(ctx context.Context, key Key, inc Increment) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}
	if err := inc.Validate(); err != nil {
		return Entry{}, err
	}

	start := time.Now()
	attempt := 0
	op := func() (Entry, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordLedgerRetry()
		}
		entry, err := m.store.ApplyIncrement(ctx, key, inc, m.levelOf)
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, ErrInvalidIncrement) || ctx.Err() != nil {
			return Entry{}, backoff.Permanent(err)
		}
		m.logger.Warn(ctx, "ledger increment attempt failed",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		return Entry{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.initialInterval
	b.MaxInterval = m.maxInterval

	entry, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(m.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	metrics.RecordLedgerWriteLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLedgerWrite("failed")
		if errors.Is(err, ErrInvalidIncrement) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrWriteFailed, key, attempt, err)
	}
	metrics.RecordLedgerWrite("applied")
	return entry, nil
}

// Find returns the current entry for key.
func (m *Merger) Find(ctx context.Context, key Key) (Entry, error) {
	return m.store.Find(ctx, key)
}
