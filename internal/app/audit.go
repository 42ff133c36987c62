package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/model"
)

type auditRepo struct {
	RepoOwner    string `json:"repo_owner"`
	RepoFullName string `json:"repo_full_name"`
	RepoName     string `json:"repo_name"`
	RepoID       int64  `json:"repo_id"`
	RepoURL      string `json:"repo_url"`
	Username     string `json:"username"`
	UserID       int64  `json:"user_id"`
	EventType    string `json:"event_type"`
	DeliveryID   string `json:"delivery_id"`
	ExpEarned    int64  `json:"exp_earned"`
}

type auditCommit struct {
	ID         string    `json:"id"`
	CommitType string    `json:"commit_type"`
	Author     string    `json:"author"`
	Committer  string    `json:"committer"`
	Changes    int       `json:"changes"`
	Timestamp  time.Time `json:"timestamp"`
}

type pushAudit struct {
	auditRepo
	PushTime   time.Time     `json:"push_time"`
	Ref        string        `json:"ref"`
	NumCommits int           `json:"num_commits"`
	Commits    []auditCommit `json:"commits"`
}

type issueAudit struct {
	auditRepo
	IssueID        int64     `json:"issue_id"`
	IssueNumber    int       `json:"issue_number"`
	IssueURL       string    `json:"issue_url"`
	IssueCreatedAt time.Time `json:"issue_created_at"`
	IssueClosedAt  time.Time `json:"issue_closed_at"`
}

// auditDocument renders the write-once record of a scored delivery.
func auditDocument(scored model.ScoredEvent, receivedAt, now time.Time) (ledger.Document, error) {
	repo, actor := scored.Event.Repository(), scored.Event.Actor()
	base := auditRepo{
		RepoOwner:    repo.Owner,
		RepoFullName: repo.FullName,
		RepoName:     repo.Name,
		RepoID:       repo.ID,
		RepoURL:      repo.HTMLURL,
		Username:     actor.Login,
		UserID:       actor.ID,
		DeliveryID:   scored.DeliveryID,
		ExpEarned:    scored.ExperienceAwarded,
	}

	var (
		body       any
		collection string
	)
	switch ev := scored.Event.(type) {
	case model.Push:
		base.EventType = "push"
		commits := make([]auditCommit, len(scored.ResolvedCommits))
		for i, c := range scored.ResolvedCommits {
			commits[i] = auditCommit{
				ID:         c.SHA,
				CommitType: string(c.Classification),
				Author:     c.Author,
				Committer:  c.Committer,
				Changes:    c.ChangedLines,
				Timestamp:  c.Timestamp,
			}
		}
		body = pushAudit{auditRepo: base, PushTime: receivedAt, Ref: ev.Ref, NumCommits: len(commits), Commits: commits}
		collection = ledger.CollectionPushes
	case model.IssueClosed:
		base.EventType = "issues"
		body = issueAudit{
			auditRepo:      base,
			IssueID:        ev.IssueID,
			IssueNumber:    ev.IssueNumber,
			IssueURL:       ev.IssueURL,
			IssueCreatedAt: ev.CreatedAt,
			IssueClosedAt:  ev.ClosedAt,
		}
		collection = ledger.CollectionIssues
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ledger.Document{}, err
	}
	return ledger.Document{
		ID:         uuid.NewString(),
		Collection: collection,
		DeliveryID: scored.DeliveryID,
		Experience: scored.ExperienceAwarded,
		RecordedAt: now,
		Payload:    payload,
	}, nil
}
