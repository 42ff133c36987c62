package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/gamebot/internal/domain/ledger"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

const sqliteUpsert = `
INSERT INTO ledger_entries (repo_full_name, username, num_commits, issues_closed, exp_earned, user_level, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?)
ON CONFLICT (repo_full_name, username) DO UPDATE SET
    num_commits   = num_commits + excluded.num_commits,
    issues_closed = issues_closed + excluded.issues_closed,
    exp_earned    = exp_earned + excluded.exp_earned,
    updated_at    = excluded.updated_at
RETURNING num_commits, issues_closed, exp_earned`

// SQLiteStore keeps the ledger in a SQLite file. Transactions begin
// IMMEDIATE, so concurrent increments serialize on the database write lock.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: sqlite path", ErrMissingDSN)
	}
	o := newOptions(opts)

	dsn := fmt.Sprintf("%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		filepath.Clean(path), o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ApplyIncrement implements ledger.Store.
func (s *SQLiteStore) ApplyIncrement(ctx context.Context, key ledger.Key, inc ledger.Increment, levelOf ledger.LevelFunc) (_ ledger.Entry, err error) {
	start := time.Now()
	defer func() { observeUpdate(start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	e := ledger.Entry{Key: key}
	err = tx.QueryRowContext(ctx, sqliteUpsert,
		key.RepoFullName, key.Username, inc.Commits, inc.IssuesClosed, inc.Experience, time.Now().UnixMilli(),
	).Scan(&e.Commits, &e.IssuesClosed, &e.Experience)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("upsert %s: %w", key, err)
	}

	e.Level = levelOf(e.Experience)
	if _, err = tx.ExecContext(ctx,
		`UPDATE ledger_entries SET user_level = ? WHERE repo_full_name = ? AND username = ?`,
		e.Level, key.RepoFullName, key.Username,
	); err != nil {
		return ledger.Entry{}, fmt.Errorf("set level %s: %w", key, err)
	}
	if err = tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit %s: %w", key, err)
	}
	return e, nil
}

// Find implements ledger.Store.
func (s *SQLiteStore) Find(ctx context.Context, key ledger.Key) (ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)

	e := ledger.Entry{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT num_commits, issues_closed, exp_earned, user_level FROM ledger_entries WHERE repo_full_name = ? AND username = ?`,
		key.RepoFullName, key.Username,
	).Scan(&e.Commits, &e.IssuesClosed, &e.Experience, &e.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, key)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("find %s: %w", key, err)
	}
	return e, nil
}

// Leaderboard implements ledger.Store.
func (s *SQLiteStore) Leaderboard(ctx context.Context, repoFullName string, limit int) ([]ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, num_commits, issues_closed, exp_earned, user_level
		   FROM ledger_entries
		  WHERE repo_full_name = ?
		  ORDER BY exp_earned DESC, username ASC
		  LIMIT ?`,
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
func (s *SQLiteStore) RecordEvent(ctx context.Context, doc ledger.Document) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (id, collection, delivery_id, exp_earned, payload, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, doc.Collection, doc.DeliveryID, doc.Experience, string(doc.Payload), doc.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record %s document: %w", doc.Collection, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}
	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM ledger_entries), (SELECT COUNT(*) FROM event_log)`,
	).Scan(&st.Entries, &st.Documents)
	if err != nil {
		return Stats{}, fmt.Errorf("sqlite stats: %w", err)
	}
	return st, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
