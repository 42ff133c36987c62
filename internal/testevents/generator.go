package testevents

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/okian/gamebot/internal/domain/scoring"
)

const maxCommitsPerPush = 5

type ownerJSON struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type repoJSON struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	FullName   string    `json:"full_name"`
	HTMLURL    string    `json:"html_url"`
	CompareURL string    `json:"compare_url"`
	Owner      ownerJSON `json:"owner"`
}

type gitUserJSON struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type commitJSON struct {
	ID        string      `json:"id"`
	Distinct  bool        `json:"distinct"`
	Timestamp time.Time   `json:"timestamp"`
	Author    gitUserJSON `json:"author"`
	Committer gitUserJSON `json:"committer"`
}

type pushJSON struct {
	Ref        string       `json:"ref"`
	Before     string       `json:"before"`
	Commits    []commitJSON `json:"commits"`
	Repository repoJSON     `json:"repository"`
	Sender     ownerJSON    `json:"sender"`
}

type issueJSON struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	ClosedAt  time.Time `json:"closed_at"`
}

type issuesJSON struct {
	Action     string    `json:"action"`
	Issue      issueJSON `json:"issue"`
	Repository repoJSON  `json:"repository"`
	Sender     ownerJSON `json:"sender"`
}

// randInt returns a uniform value in [0, n).
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randomSHA() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// generate builds cfg.Deliveries deliveries spread over cfg.Users senders,
// each with the increment the server is expected to apply.
func generate(cfg *Config) ([]Delivery, error) {
	strategy, err := scoring.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	calc := scoring.NewCalculator(scoring.WithStrategy(strategy))
	withPushes := !strategy.UsesDiffs()

	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repo must be owner/name, got %q", cfg.Repo)
	}
	repo := repoJSON{
		ID:         int64(1000 + randInt(1_000_000)),
		Name:       name,
		FullName:   cfg.Repo,
		HTMLURL:    "https://github.com/" + cfg.Repo,
		CompareURL: "https://api.github.com/repos/" + cfg.Repo + "/compare/{base}...{head}",
		Owner:      ownerJSON{Login: owner, ID: 1},
	}

	out := make([]Delivery, 0, cfg.Deliveries)
	now := time.Now().UTC().Truncate(time.Second)
	for i := range cfg.Deliveries {
		sender := ownerJSON{Login: fmt.Sprintf("user-%03d", i%max(cfg.Users, 1)), ID: int64(10_000 + i%max(cfg.Users, 1))}
		d := Delivery{ID: uuid.NewString(), Username: sender.Login}

		if withPushes && randInt(2) == 0 {
			p := pushJSON{Ref: "refs/heads/main", Before: randomSHA(), Repository: repo, Sender: sender}
			distinct := 0
			for range 1 + randInt(maxCommitsPerPush) {
				c := commitJSON{
					ID:        randomSHA(),
					Distinct:  randInt(4) != 0,
					Timestamp: now,
					Author:    gitUserJSON{Name: sender.Login, Username: sender.Login},
					Committer: gitUserJSON{Name: "GitHub"},
				}
				if c.Distinct {
					distinct++
				}
				p.Commits = append(p.Commits, c)
			}
			d.Event = normalize.EventPush
			d.Expected = calc.Increment(model.Push{}, scoring.PushSummary{DistinctCommits: distinct})
			d.Body, err = json.Marshal(p)
		} else {
			is := issuesJSON{
				Action: normalize.ActionClosed,
				Issue: issueJSON{
					ID:        int64(500_000 + i),
					Number:    i + 1,
					HTMLURL:   fmt.Sprintf("%s/issues/%d", repo.HTMLURL, i+1),
					CreatedAt: now.Add(-time.Hour),
					ClosedAt:  now,
				},
				Repository: repo,
				Sender:     sender,
			}
			d.Event = normalize.EventIssues
			d.Expected = calc.Increment(model.IssueClosed{}, scoring.PushSummary{})
			d.Body, err = json.Marshal(is)
		}
		if err != nil {
			return nil, fmt.Errorf("encode delivery %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
