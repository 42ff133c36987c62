// Package types contains the JSON shapes served by the HTTP API.
package types

import (
	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/level"
)

// LedgerEntry is one user's standing in one repository.
type LedgerEntry struct {
	Repository   string `json:"repository"`
	Username     string `json:"username"`
	Commits      int64  `json:"num_commits"`
	IssuesClosed int64  `json:"issues_closed"`
	Experience   int64  `json:"exp_earned"`
	Level        int    `json:"user_level"`
	NextLevelAt  int64  `json:"next_level_at"`
}

// RankedEntry is a LedgerEntry with its leaderboard position.
type RankedEntry struct {
	Rank int `json:"rank"`
	LedgerEntry
}

// Leaderboard is the ranked list of one repository.
type Leaderboard struct {
	Repository string        `json:"repository"`
	Entries    []RankedEntry `json:"entries"`
}

// Ack acknowledges a webhook delivery.
type Ack struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// FromEntry converts a ledger entry.
func FromEntry(e ledger.Entry) LedgerEntry {
	return LedgerEntry{
		Repository:   e.Key.RepoFullName,
		Username:     e.Key.Username,
		Commits:      e.Commits,
		IssuesClosed: e.IssuesClosed,
		Experience:   e.Experience,
		Level:        e.Level,
		NextLevelAt:  level.Threshold(e.Level + 1),
	}
}

// NewLeaderboard ranks entries by position; they must already be ordered.
func NewLeaderboard(repo string, entries []ledger.Entry) Leaderboard {
	out := Leaderboard{Repository: repo, Entries: make([]RankedEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = RankedEntry{Rank: i + 1, LedgerEntry: FromEntry(e)}
	}
	return out
}
