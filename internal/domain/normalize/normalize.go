// Package normalize turns raw GitHub webhook bodies into contribution events.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/gamebot/internal/domain/model"
)

// Webhook event names and actions this package understands.
const (
	EventPush   = "push"
	EventIssues = "issues"
	EventPing   = "ping"

	ActionClosed = "closed"
)

// Supported reports whether (kind, action) is scored at all.
func Supported(kind, action string) bool {
	switch kind {
	case EventPush:
		return true
	case EventIssues:
		return action == ActionClosed
	default:
		return false
	}
}

// PeekAction returns the top-level "action" of a webhook body, or "" when
// the body has none or is not JSON.
func PeekAction(body []byte) string {
	var a actionPayload
	if err := json.Unmarshal(body, &a); err != nil {
		return ""
	}
	return a.Action
}

// Normalizer validates webhook bodies and builds model events.
// It is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

// New creates a Normalizer.
func New() *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Normalizer{validate: v}
}

// Normalize builds the event for a (kind, action) delivery body.
func (n *Normalizer) Normalize(kind, action string, body []byte) (model.Event, error) {
	switch {
	case kind == EventPush:
		return n.push(body)
	case kind == EventIssues && action == ActionClosed:
		return n.issueClosed(body)
	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedEvent, kind, action)
	}
}

func (n *Normalizer) push(body []byte) (model.Event, error) {
	var p pushPayload
	if err := n.decode(body, &p); err != nil {
		return nil, err
	}

	commits := make([]model.RawCommit, len(p.Commits))
	for i, c := range p.Commits {
		commits[i] = model.RawCommit{
			SHA:       c.ID,
			Distinct:  *c.Distinct,
			Author:    c.Author.display(),
			Committer: c.Committer.display(),
			Timestamp: c.Timestamp.UTC(),
		}
	}
	return model.NewPush(repository(p.Repository), actor(p.Sender), p.Before, p.Ref, commits), nil
}

func (n *Normalizer) issueClosed(body []byte) (model.Event, error) {
	var p issuesPayload
	if err := n.decode(body, &p); err != nil {
		return nil, err
	}
	if p.Action != ActionClosed {
		return nil, fmt.Errorf("%w: issues/%s", ErrUnsupportedEvent, p.Action)
	}
	return model.IssueClosed{
		Repo:        repository(p.Repository),
		Sender:      actor(p.Sender),
		IssueID:     *p.Issue.ID,
		IssueNumber: *p.Issue.Number,
		IssueURL:    p.Issue.HTMLURL,
		CreatedAt:   p.Issue.CreatedAt.UTC(),
		ClosedAt:    p.Issue.ClosedAt.UTC(),
	}, nil
}

func (n *Normalizer) decode(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := n.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrMalformedPayload, describe(verrs))
		}
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}

// describe renders validation failures as "field (rule)" pairs using the
// JSON path of each field.
func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", ns, fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func repository(r *repositoryPayload) model.Repository {
	return model.Repository{
		ID:         *r.ID,
		FullName:   r.FullName,
		Name:       r.Name,
		Owner:      r.Owner.Login,
		HTMLURL:    r.HTMLURL,
		CompareURL: r.CompareURL,
	}
}

func actor(s *senderPayload) model.Actor {
	return model.Actor{Login: s.Login, ID: *s.ID}
}
