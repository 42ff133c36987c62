// Package resolve turns the raw commit list of a push into resolved commits
// with changed-line counts and a classification.
package resolve

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

const defaultConcurrency = 4

// FileChange is one file entry of a compare response.
type FileChange struct {
	Filename string
	Changes  int
}

// DiffProvider fetches the file changes between two commits.
type DiffProvider interface {
	// CompareRange expands compareURL for base...head and returns the
	// changed files. Both identifiers are already shortened.
	CompareRange(ctx context.Context, compareURL, base, head string) ([]FileChange, error)
}

// Resolution is the resolved form of one push.
type Resolution struct {
	Commits         []model.ResolvedCommit
	DistinctCommits int
	ChangedLines    int
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithDiffProvider sets where diffs come from. Without one the resolver
// only counts distinct commits.
func WithDiffProvider(p DiffProvider) Option {
	return func(r *Resolver) {
		r.diffs = p
	}
}

// WithConcurrency bounds how many compare calls one push may run at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver resolves pushes.
type Resolver struct {
	diffs       DiffProvider
	concurrency int
	logger      logger.Logger
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		concurrency: defaultConcurrency,
		logger:      logger.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchesDiffs reports whether a DiffProvider is configured.
func (r *Resolver) FetchesDiffs() bool { return r.diffs != nil }

type pendingDiff struct {
	index int
	base  string
	head  string
}

// Resolve walks the commits of p in order.
//
// The base of each distinct commit is the commit immediately before it in
// the push, distinct or not, and the first commit is based on p.BeforeSHA.
// Non-distinct commits move the base forward but are never diffed or
// returned. If any diff fails the push resolves to ErrDiffUnavailable and
// no partial result is returned.
func (r *Resolver) Resolve(ctx context.Context, p model.Push) (Resolution, error) {
	var (
		res     Resolution
		pending []pendingDiff
		prev    = p.BeforeSHA
	)
	for _, c := range p.Commits {
		base := prev
		prev = c.SHA
		if !c.Distinct {
			continue
		}
		rc := model.ResolvedCommit{
			SHA:            c.SHA,
			BaseSHA:        model.ShortSHA(base),
			HeadSHA:        model.ShortSHA(c.SHA),
			Classification: model.Unclassified,
			Author:         c.Author,
			Committer:      c.Committer,
			Timestamp:      c.Timestamp,
		}
		res.Commits = append(res.Commits, rc)
		pending = append(pending, pendingDiff{index: len(res.Commits) - 1, base: rc.BaseSHA, head: rc.HeadSHA})
	}
	res.DistinctCommits = len(res.Commits)

	if r.diffs == nil || len(pending) == 0 {
		return res, nil
	}

	changes := make([]int, len(res.Commits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, pd := range pending {
		g.Go(func() error {
			start := time.Now()
			files, err := r.diffs.CompareRange(gctx, p.Repo.CompareURL, pd.base, pd.head)
			metrics.RecordDiffLatency(float64(time.Since(start).Milliseconds()))
			if err != nil {
				metrics.RecordDiffFetch("failed")
				return fmt.Errorf("%w: %s...%s: %w", ErrDiffUnavailable, pd.base, pd.head, err)
			}
			metrics.RecordDiffFetch("ok")
			total := 0
			for _, f := range files {
				total += max(f.Changes, 0)
			}
			changes[pd.index] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn(ctx, "push could not be resolved",
			logger.String("repo", p.Repo.FullName),
			logger.Int("distinct_commits", res.DistinctCommits),
			logger.Error(err),
		)
		return Resolution{}, err
	}

	for i := range res.Commits {
		res.Commits[i].ChangedLines = changes[i]
		res.ChangedLines += changes[i]
		if changes[i] == 0 {
			res.Commits[i].Classification = model.MergedPullRequest
		} else {
			res.Commits[i].Classification = model.NormalCommit
		}
	}
	return res, nil
}
