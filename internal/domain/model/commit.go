package model

import "time"

// Classification describes what a resolved commit most likely was.
type Classification string

const (
	// NormalCommit is a commit that changed at least one line.
	NormalCommit Classification = "normal commit"
	// MergedPullRequest is a distinct commit whose diff is empty, which is
	// what a merge commit of an already-pushed branch looks like.
	MergedPullRequest Classification = "pull request merged"
	// Unclassified is used when diffs are not fetched at all.
	Unclassified Classification = "unclassified"
)

// ShortSHALen is the identifier length used for compare queries.
const ShortSHALen = 12

// ShortSHA truncates sha to ShortSHALen characters.
func ShortSHA(sha string) string {
	if len(sha) > ShortSHALen {
		return sha[:ShortSHALen]
	}
	return sha
}

// ResolvedCommit is a distinct commit with its diff size attached.
type ResolvedCommit struct {
	SHA            string         `json:"sha"`
	BaseSHA        string         `json:"base_sha"`
	HeadSHA        string         `json:"head_sha"`
	ChangedLines   int            `json:"changed_lines"`
	Classification Classification `json:"classification"`
	Author         string         `json:"author"`
	Committer      string         `json:"committer"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ScoredEvent is an event together with the experience it earned.
type ScoredEvent struct {
	DeliveryID        string
	Event             Event
	ExperienceAwarded int64
	ResolvedCommits   []ResolvedCommit
}

// Delivery is one accepted webhook delivery waiting to be scored.
type Delivery struct {
	ID         string
	ReceivedAt time.Time
	Event      Event
}
