package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("delivery queue is full")
	// ErrNoDiffProvider is returned when a diff-weighted service has no
	// way to count changed lines.
	ErrNoDiffProvider = errors.New("diff_weighted scoring needs a diff provider")
)
