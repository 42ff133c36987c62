package testevents

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/level"
	"github.com/okian/gamebot/pkg/logger"
)

const pollInterval = 100 * time.Millisecond

// expectedTotals sums the increments of the accepted deliveries per user.
func expectedTotals(deliveries []Delivery) map[string]ledger.Increment {
	out := make(map[string]ledger.Increment)
	for _, d := range deliveries {
		cur := out[d.Username]
		cur.Commits += d.Expected.Commits
		cur.IssuesClosed += d.Expected.IssuesClosed
		cur.Experience += d.Expected.Experience
		out[d.Username] = cur
	}
	return out
}

// verify waits until every user's ledger entry matches want, then checks
// the leaderboard order.
func verify(ctx context.Context, c *client, cfg *Config, want map[string]ledger.Increment, stats *Stats) error {
	log := logger.Get().Named("testevents")
	deadline := time.Now().Add(cfg.Settle)

	pending := make(map[string]ledger.Increment, len(want))
	for u, inc := range want {
		pending[u] = inc
	}
	for len(pending) > 0 {
		for u, inc := range pending {
			e, code, err := c.entry(ctx, cfg.Repo, u)
			if err != nil {
				return err
			}
			if code == http.StatusOK && e.Commits == inc.Commits && e.IssuesClosed == inc.IssuesClosed &&
				e.Experience == inc.Experience && e.Level == level.Of(inc.Experience) {
				delete(pending, u)
			}
		}
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			stats.Mismatched = len(pending)
			for u, inc := range pending {
				log.Error(ctx, "ledger mismatch", logger.String("user", u), logger.Any("want", inc))
			}
			return fmt.Errorf("%d of %d users did not reach their expected totals", len(pending), len(want))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	board, err := c.leaderboard(ctx, cfg.Repo, len(want))
	if err != nil {
		return err
	}
	if len(board.Entries) != len(want) {
		return fmt.Errorf("leaderboard has %d entries, want %d", len(board.Entries), len(want))
	}
	ordered := sort.SliceIsSorted(board.Entries, func(i, j int) bool {
		a, b := board.Entries[i], board.Entries[j]
		if a.Experience != b.Experience {
			return a.Experience > b.Experience
		}
		return a.Username < b.Username
	})
	if !ordered {
		return fmt.Errorf("leaderboard is not ordered by experience then username")
	}
	stats.Users = len(want)
	return nil
}
