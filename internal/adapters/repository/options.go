package repository

import "time"

// Default store configuration constants.
const (
	defaultMetricsUpdateInterval = 5 * time.Second
	defaultBusyTimeout           = 5 * time.Second
	defaultMaxConns              = 8
)

type options struct {
	metricsUpdateInterval time.Duration
	busyTimeout           time.Duration
	maxConns              int32
}

func newOptions(opts []Option) options {
	o := options{
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		busyTimeout:           defaultBusyTimeout,
		maxConns:              defaultMaxConns,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithMaxConns caps the Postgres pool size.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}
