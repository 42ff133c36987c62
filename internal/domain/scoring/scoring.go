// Package scoring computes experience awards for contribution events.
package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/model"
)

// Award constants.
const (
	pushBase           = 5
	perDistinctCommit  = 2
	flatPushBase       = 10
	flatPerCommit      = 4
	IssueClosedAward   = 40
	issuesClosedPerHit = 1
)

// Strategy selects the push formula. A deployment uses exactly one.
type Strategy string

const (
	// DiffWeighted awards 5 + 2*distinct + changed lines.
	DiffWeighted Strategy = "diff_weighted"
	// Flat awards 10 + 4*distinct and ignores diff sizes.
	Flat Strategy = "flat"
)

// ErrUnknownStrategy is returned by ParseStrategy.
var ErrUnknownStrategy = errors.New("unknown scoring strategy")

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DiffWeighted:
		return DiffWeighted, nil
	case Flat:
		return Flat, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// UsesDiffs reports whether the strategy needs changed-line counts.
func (s Strategy) UsesDiffs() bool { return s != Flat }

// PushSummary is the resolved data a push award depends on.
type PushSummary struct {
	DistinctCommits int
	ChangedLines    int
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithStrategy sets the push formula.
func WithStrategy(s Strategy) Option {
	return func(c *Calculator) {
		if s != "" {
			c.strategy = s
		}
	}
}

// Calculator is a pure function from resolved events to awards.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a Calculator, defaulting to DiffWeighted.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{strategy: DiffWeighted}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Strategy returns the configured strategy.
func (c *Calculator) Strategy() Strategy { return c.strategy }

// PushAward returns the experience for a push.
func (c *Calculator) PushAward(s PushSummary) int64 {
	distinct := int64(max(s.DistinctCommits, 0))
	if c.strategy == Flat {
		return flatPushBase + flatPerCommit*distinct
	}
	return pushBase + perDistinctCommit*distinct + int64(max(s.ChangedLines, 0))
}

// Award returns the experience earned by ev. summary is ignored for
// issue events.
func (c *Calculator) Award(ev model.Event, summary PushSummary) int64 {
	switch ev.(type) {
	case model.Push:
		return c.PushAward(summary)
	case model.IssueClosed:
		return IssueClosedAward
	default:
		return 0
	}
}

// Increment derives the ledger increment for a scored event.
func (c *Calculator) Increment(ev model.Event, summary PushSummary) ledger.Increment {
	switch ev.(type) {
	case model.Push:
		return ledger.Increment{
			Commits:    int64(max(summary.DistinctCommits, 0)),
			Experience: c.PushAward(summary),
		}
	case model.IssueClosed:
		return ledger.Increment{
			IssuesClosed: issuesClosedPerHit,
			Experience:   IssueClosedAward,
		}
	default:
		return ledger.Increment{}
	}
}
