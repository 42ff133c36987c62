package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/gamebot/internal/domain/ledger"
)

//go:embed schema/postgres.sql
var postgresSchema string

const postgresUpsert = `
INSERT INTO ledger_entries (repo_full_name, username, num_commits, issues_closed, exp_earned, user_level, updated_at)
VALUES ($1, $2, $3, $4, $5, 1, now())
ON CONFLICT (repo_full_name, username) DO UPDATE SET
    num_commits   = ledger_entries.num_commits + EXCLUDED.num_commits,
    issues_closed = ledger_entries.issues_closed + EXCLUDED.issues_closed,
    exp_earned    = ledger_entries.exp_earned + EXCLUDED.exp_earned,
    updated_at    = now()
RETURNING num_commits, issues_closed, exp_earned`

// PostgresStore keeps the ledger in Postgres. The upsert takes the row
// lock, which is held until the level update commits.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and creates the schema if needed.
func OpenPostgres(ctx context.Context, url string, opts ...Option) (*PostgresStore, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: postgres url", ErrMissingDSN)
	}
	o := newOptions(opts)

	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pcfg.MaxConns = o.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// ApplyIncrement implements ledger.Store.
func (s *PostgresStore) ApplyIncrement(ctx context.Context, key ledger.Key, inc ledger.Increment, levelOf ledger.LevelFunc) (_ ledger.Entry, err error) {
	start := time.Now()
	defer func() { observeUpdate(start, err) }()

	e := ledger.Entry{Key: key}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, postgresUpsert,
			key.RepoFullName, key.Username, inc.Commits, inc.IssuesClosed, inc.Experience,
		).Scan(&e.Commits, &e.IssuesClosed, &e.Experience); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
		e.Level = levelOf(e.Experience)
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_entries SET user_level = $1 WHERE repo_full_name = $2 AND username = $3`,
			e.Level, key.RepoFullName, key.Username,
		); err != nil {
			return fmt.Errorf("set level %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

// Find implements ledger.Store.
func (s *PostgresStore) Find(ctx context.Context, key ledger.Key) (ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)

	e := ledger.Entry{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT num_commits, issues_closed, exp_earned, user_level FROM ledger_entries WHERE repo_full_name = $1 AND username = $2`,
		key.RepoFullName, key.Username,
	).Scan(&e.Commits, &e.IssuesClosed, &e.Experience, &e.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, key)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("find %s: %w", key, err)
	}
	return e, nil
}

// Leaderboard implements ledger.Store.
func (s *PostgresStore) Leaderboard(ctx context.Context, repoFullName string, limit int) ([]ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT username, num_commits, issues_closed, exp_earned, user_level
		   FROM ledger_entries
		  WHERE repo_full_name = $1
		  ORDER BY exp_earned DESC, username ASC
		  LIMIT $2`,
		repoFullName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", repoFullName, err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e := ledger.Entry{Key: ledger.Key{RepoFullName: repoFullName}}
		if err := rows.Scan(&e.Key.Username, &e.Commits, &e.IssuesClosed, &e.Experience, &e.Level); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordEvent implements ledger.EventLog.
func (s *PostgresStore) RecordEvent(ctx context.Context, doc ledger.Document) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO event_log (id, collection, delivery_id, exp_earned, payload, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Collection, doc.DeliveryID, doc.Experience, string(doc.Payload), doc.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record %s document: %w", doc.Collection, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}
	return nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM ledger_entries), (SELECT COUNT(*) FROM event_log)`,
	).Scan(&st.Entries, &st.Documents)
	if err != nil {
		return Stats{}, fmt.Errorf("postgres stats: %w", err)
	}
	return st, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
