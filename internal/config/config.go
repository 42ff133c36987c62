// Package config defines service configuration and its loading.
package config

import (
	"context"
	"runtime"
)

// Ledger drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory delivery queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeEnabled turns delivery id deduplication on.
	DedupeEnabled bool `koanf:"dedupe_enabled"`

	// DedupeSize sets how many delivery ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPayloadBytes caps the webhook request body.
	MaxPayloadBytes int64 `koanf:"max_payload_bytes"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// WebhookSecret enables X-Hub-Signature-256 verification when set.
	WebhookSecret string `koanf:"webhook_secret"`

	// ScoringStrategy is diff_weighted or flat.
	ScoringStrategy string `koanf:"scoring_strategy"`

	// DiffConcurrency bounds compare requests in flight per push.
	DiffConcurrency int `koanf:"diff_concurrency"`

	GitHubAPIURL     string `koanf:"github_api_url"`
	GitHubToken      string `koanf:"github_token"`
	GitHubUserAgent  string `koanf:"github_user_agent"`
	GitHubTimeoutMS  int    `koanf:"github_timeout_ms"`
	GitHubMaxRetries int    `koanf:"github_max_retries"`

	// LedgerDriver selects the store: memory, sqlite or postgres.
	LedgerDriver     string `koanf:"ledger_driver"`
	SQLitePath       string `koanf:"sqlite_path"`
	PostgresURL      string `koanf:"postgres_url"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`
	LedgerMaxRetries int    `koanf:"ledger_max_retries"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeEnabled:       true,
		DedupeSize:          50_000,
		MaxPayloadBytes:     5 << 20,
		MaxLeaderboardLimit: 100,
		ScoringStrategy:     "diff_weighted",
		DiffConcurrency:     4,
		GitHubAPIURL:        "https://api.github.com",
		GitHubUserAgent:     "gamebot",
		GitHubTimeoutMS:     10_000,
		GitHubMaxRetries:    3,
		LedgerDriver:        DriverMemory,
		SQLitePath:          "gamebot.db",
		PostgresMaxConns:    8,
		LedgerMaxRetries:    5,
	}
}
