package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
	ErrUnknownDriver     = errors.New("unknown ledger driver")
	ErrDuplicateDocument = errors.New("audit document already recorded")
	ErrMissingDSN        = errors.New("ledger store location is required")
)
