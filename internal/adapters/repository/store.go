// Package repository implements the ledger stores: an in-memory treap,
// SQLite and Postgres.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/pkg/metrics"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Stats summarizes what a store holds.
type Stats struct {
	Entries   int64
	Documents int64
}

// Store is a ledger store that also keeps the audit log.
type Store interface {
	ledger.Store
	ledger.EventLog

	// Stats counts ledger entries and audit documents.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Config selects and locates a store.
type Config struct {
	Driver           string
	SQLitePath       string
	PostgresURL      string
	PostgresMaxConns int32
}

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(ctx, opts...), nil
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, opts...)
	case DriverPostgres:
		if cfg.PostgresMaxConns > 0 {
			opts = append(opts, WithMaxConns(cfg.PostgresMaxConns))
		}
		return OpenPostgres(ctx, cfg.PostgresURL, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func observeUpdate(start time.Time, err error) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "update")
	}
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
}

func validateLimit(limit int) error {
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}
