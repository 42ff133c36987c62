// Package model contains the contribution events passed between layers.
package model

import "time"

// Kind names the webhook event family an Event was built from.
type Kind string

// Supported event kinds.
const (
	KindPush        Kind = "push"
	KindIssueClosed Kind = "issue_closed"
)

// Repository identifies the repository a contribution happened in.
type Repository struct {
	ID       int64
	FullName string
	Name     string
	Owner    string
	HTMLURL  string
	// CompareURL is the compare template from the payload, e.g.
	// https://api.github.com/repos/o/r/compare/{base}...{head}.
	CompareURL string
}

// Actor is the user credited with a contribution.
type Actor struct {
	Login string
	ID    int64
}

// Event is a normalized contribution event. It is implemented only by
// Push and IssueClosed.
type Event interface {
	Kind() Kind
	Repository() Repository
	Actor() Actor
	sealed()
}

// RawCommit is one commit of a push exactly as the payload reported it.
type RawCommit struct {
	SHA       string
	Distinct  bool
	Author    string
	Committer string
	Timestamp time.Time
}

// Push is a normalized push event.
type Push struct {
	Repo      Repository
	Sender    Actor
	BeforeSHA string
	Ref       string
	Commits   []RawCommit
}

// NewPush builds a Push that owns its own copy of commits.
func NewPush(repo Repository, sender Actor, before, ref string, commits []RawCommit) Push {
	cp := make([]RawCommit, len(commits))
	copy(cp, commits)
	return Push{Repo: repo, Sender: sender, BeforeSHA: before, Ref: ref, Commits: cp}
}

func (Push) Kind() Kind               { return KindPush }
func (p Push) Repository() Repository { return p.Repo }
func (p Push) Actor() Actor           { return p.Sender }
func (Push) sealed()                  {}

// IssueClosed is a normalized issues/closed event.
type IssueClosed struct {
	Repo        Repository
	Sender      Actor
	IssueID     int64
	IssueNumber int
	IssueURL    string
	CreatedAt   time.Time
	ClosedAt    time.Time
}

func (IssueClosed) Kind() Kind               { return KindIssueClosed }
func (i IssueClosed) Repository() Repository { return i.Repo }
func (i IssueClosed) Actor() Actor           { return i.Sender }
func (IssueClosed) sealed()                  {}
