package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/gamebot/internal/adapters/github"
	"github.com/okian/gamebot/internal/adapters/repository"
	app "github.com/okian/gamebot/internal/app"
	"github.com/okian/gamebot/internal/config"
	"github.com/okian/gamebot/internal/domain/scoring"
	"github.com/okian/gamebot/pkg/logger"
)

// bootstrap initializes logging to w and loads configuration
// (defaults -> optional file -> env).
func bootstrap(ctx context.Context, w io.Writer) (*config.Config, error) {
	if err := logger.InitWithWriter(w); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// openStore opens the ledger store selected by ledger_driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	store, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.LedgerDriver,
		SQLitePath:       cfg.SQLitePath,
		PostgresURL:      cfg.PostgresURL,
		PostgresMaxConns: int32(cfg.PostgresMaxConns), //nolint:gosec // validated positive and small
	})
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.LedgerDriver, err)
	}
	logger.Get().Info(ctx, "ledger store opened", logger.String("driver", cfg.LedgerDriver))
	return store, nil
}

// newService builds the scoring service over store. A GitHub client is
// wired only when the strategy weighs diffs.
func newService(cfg *config.Config, store repository.Store, extra ...app.Option) (*app.Service, error) {
	strategy, err := scoring.ParseStrategy(cfg.ScoringStrategy)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithStore(store),
		app.WithStrategy(strategy),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeEnabled(cfg.DedupeEnabled),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDiffConcurrency(cfg.DiffConcurrency),
		app.WithLedgerMaxRetries(cfg.LedgerMaxRetries),
	}
	if strategy.UsesDiffs() {
		opts = append(opts, app.WithDiffProvider(github.NewClient(
			github.WithBaseURL(cfg.GitHubAPIURL),
			github.WithToken(cfg.GitHubToken),
			github.WithUserAgent(cfg.GitHubUserAgent),
			github.WithTimeout(time.Duration(cfg.GitHubTimeoutMS)*time.Millisecond),
			github.WithMaxRetries(cfg.GitHubMaxRetries),
		)))
	}
	return app.New(append(opts, extra...)...), nil
}
