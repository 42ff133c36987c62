package github

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for GitHub client errors.
var (
	ErrNoCompareURL = errors.New("repository has no compare url")
	ErrRateLimited  = errors.New("github rate limited")
	ErrUnavailable  = errors.New("github unavailable")
)

// StatusError wraps a non-2xx response that was not retried or ran out of
// retries.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Unwrap maps the status onto a sentinel where one fits.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests || e.Status == http.StatusForbidden:
		return ErrRateLimited
	case e.Status >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return nil
	}
}

// IsRateLimited reports whether err is a 429 or 403 (secondary limit).
func IsRateLimited(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether err is a 404, which compare returns for
// unknown or force-pushed-away commits.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// IsTransient reports whether err is a 5xx.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	return false
}
