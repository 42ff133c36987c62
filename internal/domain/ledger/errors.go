package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrNotFound         = errors.New("ledger entry not found")
	ErrInvalidIncrement = errors.New("invalid ledger increment")
	ErrWriteFailed      = errors.New("ledger write failed")
)
