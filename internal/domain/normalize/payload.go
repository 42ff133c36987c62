package normalize

import "time"

// Wire shapes of the GitHub webhook bodies. Only the fields scoring and
// auditing need are declared; pointers mark fields whose absence must be
// told apart from their zero value.

type ownerPayload struct {
	Login string `json:"login" validate:"required"`
}

type repositoryPayload struct {
	ID         *int64        `json:"id" validate:"required"`
	FullName   string        `json:"full_name" validate:"required"`
	Name       string        `json:"name"`
	HTMLURL    string        `json:"html_url"`
	CompareURL string        `json:"compare_url"`
	Owner      *ownerPayload `json:"owner" validate:"required"`
}

type senderPayload struct {
	Login string `json:"login" validate:"required"`
	ID    *int64 `json:"id" validate:"required"`
}

type gitUserPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// display prefers the GitHub username and falls back to the git name.
func (u *gitUserPayload) display() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

type commitPayload struct {
	ID        string          `json:"id" validate:"required,hexadecimal"`
	Distinct  *bool           `json:"distinct" validate:"required"`
	Timestamp *time.Time      `json:"timestamp" validate:"required"`
	Author    *gitUserPayload `json:"author"`
	Committer *gitUserPayload `json:"committer"`
}

type pushPayload struct {
	Ref        string             `json:"ref"`
	Before     string             `json:"before" validate:"required,hexadecimal"`
	Commits    []commitPayload    `json:"commits" validate:"required,dive"`
	Repository *repositoryPayload `json:"repository" validate:"required"`
	Sender     *senderPayload     `json:"sender" validate:"required"`
}

type issuePayload struct {
	ID        *int64     `json:"id" validate:"required"`
	Number    *int       `json:"number" validate:"required"`
	HTMLURL   string     `json:"html_url"`
	CreatedAt *time.Time `json:"created_at" validate:"required"`
	ClosedAt  *time.Time `json:"closed_at" validate:"required"`
}

type issuesPayload struct {
	Action     string             `json:"action" validate:"required"`
	Issue      *issuePayload      `json:"issue" validate:"required"`
	Repository *repositoryPayload `json:"repository" validate:"required"`
	Sender     *senderPayload     `json:"sender" validate:"required"`
}

// actionPayload reads just the action of any webhook body.
type actionPayload struct {
	Action string `json:"action"`
}
