package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/gamebot/internal/domain/scoring"
)

const (
	envPrefix  = "GAMEBOT_"
	envFileVar = "GAMEBOT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if GAMEBOT_CONFIG is set
//  3. env (prefix GAMEBOT_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// GAMEBOT_QUEUE_SIZE -> queue_size. Underscores are kept to match the
	// flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a setting.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeEnabled && c.DedupeSize < 1:
		return invalid("dedupe_size must be positive, got %d", c.DedupeSize)
	case c.MaxPayloadBytes < 1:
		return invalid("max_payload_bytes must be positive, got %d", c.MaxPayloadBytes)
	case c.MaxLeaderboardLimit < 1:
		return invalid("max_leaderboard_limit must be positive, got %d", c.MaxLeaderboardLimit)
	case c.DiffConcurrency < 1:
		return invalid("diff_concurrency must be positive, got %d", c.DiffConcurrency)
	case c.GitHubTimeoutMS < 1:
		return invalid("github_timeout_ms must be positive, got %d", c.GitHubTimeoutMS)
	case c.GitHubMaxRetries < 0:
		return invalid("github_max_retries must not be negative, got %d", c.GitHubMaxRetries)
	case c.LedgerMaxRetries < 1:
		return invalid("ledger_max_retries must be positive, got %d", c.LedgerMaxRetries)
	}

	if _, err := scoring.ParseStrategy(c.ScoringStrategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if u, err := url.Parse(c.GitHubAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("github_api_url %q is not an absolute URL", c.GitHubAPIURL)
	}

	switch c.LedgerDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return invalid("postgres_url is required for the postgres driver")
		}
		if c.PostgresMaxConns < 1 {
			return invalid("postgres_max_conns must be positive, got %d", c.PostgresMaxConns)
		}
	default:
		return invalid("unknown ledger_driver %q", c.LedgerDriver)
	}
	return nil
}
