// Package testevents drives a running gamebot with signed synthetic
// deliveries and checks the resulting ledger.
package testevents

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/gamebot/pkg/logger"
)

// Run executes the complete event test.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("testevents")
	log.Info(ctx, "starting gamebot event test",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("repo", cfg.Repo),
		logger.Int("deliveries", cfg.Deliveries),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.String("strategy", cfg.Strategy),
	)

	c := newClient(cfg)
	var health map[string]string
	code, err := c.getJSON(ctx, "/healthz", &health)
	if err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	if code != http.StatusOK {
		return stats, fmt.Errorf("service health check failed: status %d", code)
	}

	deliveries, err := generate(cfg)
	if err != nil {
		return stats, fmt.Errorf("event generation failed: %w", err)
	}
	stats.Generated = len(deliveries)

	if err := submit(ctx, c, cfg, deliveries, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}
	if n := min(cfg.Redeliver, len(deliveries)); n > 0 {
		if err := submit(ctx, c, cfg, deliveries[:n], stats); err != nil {
			return stats, fmt.Errorf("redelivery failed: %w", err)
		}
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d deliveries failed", stats.Failed)
	}

	if err := verify(ctx, c, cfg, expectedTotals(deliveries), stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "event test passed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("users", stats.Users),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}
