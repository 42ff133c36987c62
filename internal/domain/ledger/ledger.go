// Package ledger defines the per-(repository, user) experience ledger and
// the contract a store must meet to hold it.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Key identifies one user's standing within one repository.
type Key struct {
	RepoFullName string
	Username     string
}

func (k Key) String() string { return k.RepoFullName + "@" + k.Username }

// Validate reports whether both key parts are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.RepoFullName) == "" || strings.TrimSpace(k.Username) == "" {
		return fmt.Errorf("%w: empty key %q", ErrInvalidIncrement, k.String())
	}
	return nil
}

// Increment is the additive change one scored event contributes.
type Increment struct {
	Commits      int64
	IssuesClosed int64
	Experience   int64
}

// Validate rejects negative increments.
func (i Increment) Validate() error {
	if i.Commits < 0 || i.IssuesClosed < 0 || i.Experience < 0 {
		return fmt.Errorf("%w: negative field in %+v", ErrInvalidIncrement, i)
	}
	return nil
}

// Entry is the cumulative record for a Key. Level is derived from
// Experience and is never written on its own.
type Entry struct {
	Key          Key
	Commits      int64
	IssuesClosed int64
	Experience   int64
	Level        int
}

// LevelFunc derives a level from cumulative experience.
type LevelFunc func(exp int64) int

// Apply returns e with inc added and the level recomputed by levelOf.
// Stores call it inside their atomic section.
func (e Entry) Apply(inc Increment, levelOf LevelFunc) Entry {
	e.Commits += inc.Commits
	e.IssuesClosed += inc.IssuesClosed
	e.Experience += inc.Experience
	e.Level = levelOf(e.Experience)
	return e
}

// Store holds ledger entries.
type Store interface {
	// Find returns the entry for key or ErrNotFound.
	Find(ctx context.Context, key Key) (Entry, error)

	// ApplyIncrement atomically creates the entry for key from inc, or adds
	// inc to the existing entry, and recomputes the level with levelOf.
	// Either every field changes or none does.
	ApplyIncrement(ctx context.Context, key Key, inc Increment, levelOf LevelFunc) (Entry, error)

	// Leaderboard returns up to limit entries of repo ordered by experience
	// descending, then username ascending.
	Leaderboard(ctx context.Context, repoFullName string, limit int) ([]Entry, error)
}

// Document is one write-once audit record of a scored delivery.
type Document struct {
	ID         string
	Collection string
	DeliveryID string
	Experience int64
	RecordedAt time.Time
	// Payload is the JSON encoded audit body.
	Payload []byte
}

// Audit collections, named after what they record.
const (
	CollectionPushes = "pushes"
	CollectionIssues = "issues"
)

// EventLog appends audit documents. Nothing in scoring reads them back.
type EventLog interface {
	RecordEvent(ctx context.Context, doc Document) error
}
