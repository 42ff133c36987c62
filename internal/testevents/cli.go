package testevents

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/gamebot/pkg/logger"
)

// Default configuration constants.
const (
	defaultDeliveries  = 1000
	defaultUsers       = 25
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = time.Minute
	defaultTestTimeout = 10 * time.Minute
)

// NewCommand returns the test-events command.
func NewCommand() *cobra.Command {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "test-events",
		Short: "Send signed synthetic webhooks to gamebot and verify the ledger",
		Long: `Generates push and closed-issue deliveries for one repository, posts them
concurrently, redelivers some of them, and waits until every sender's ledger
entry and the leaderboard match the expected totals.

Pushes carry random commit ids that GitHub cannot diff, so they are only
sent when the server runs the flat strategy.

Examples:
  test-events --url http://localhost:8080 --secret s3cret
  test-events --deliveries 20000 --workers 64 --strategy flat`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()

			stats, err := Run(ctx, cfg)
			fmt.Fprintf(cmd.OutOrStdout(),
				"generated=%d accepted=%d duplicates=%d failed=%d users=%d mismatched=%d\n",
				stats.Generated, stats.Accepted, stats.Duplicates, stats.Failed, stats.Users, stats.Mismatched)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the service")
	f.StringVar(&cfg.Repo, "repo", "gamebot/test-events", "repository full name to send deliveries for")
	f.IntVar(&cfg.Deliveries, "deliveries", defaultDeliveries, "number of deliveries to generate")
	f.IntVar(&cfg.Users, "users", defaultUsers, "number of distinct senders")
	f.IntVar(&cfg.Redeliver, "redeliver", defaultDeliveries/10, "deliveries to send twice with the same id")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "concurrent senders")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", defaultSettle, "how long to wait for the ledger to match")
	f.StringVar(&cfg.Secret, "secret", "", "webhook secret used to sign deliveries")
	f.StringVar(&cfg.Strategy, "strategy", "diff_weighted", "server scoring strategy (diff_weighted, flat)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable verbose logging")
	return cmd
}
