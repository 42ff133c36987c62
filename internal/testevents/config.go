package testevents

import (
	"time"

	"github.com/okian/gamebot/internal/domain/ledger"
)

// Config holds configuration for the event test.
type Config struct {
	BaseURL    string        // Base URL of the service
	Repo       string        // owner/name the deliveries are sent for
	Users      int           // Number of distinct senders
	Deliveries int           // Number of deliveries to generate
	Redeliver  int           // Deliveries sent a second time with the same id
	Workers    int           // Number of concurrent senders
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long to wait for the ledger to catch up
	Secret     string        // Webhook secret; unsigned when empty
	Strategy   string        // Server scoring strategy; pushes are sent only for flat
	Verbose    bool          // Enable verbose logging
}

// Delivery is one generated webhook delivery.
type Delivery struct {
	ID       string
	Event    string
	Body     []byte
	Username string
	Expected ledger.Increment
}

// Stats holds test statistics.
type Stats struct {
	Generated  int
	Accepted   int
	Duplicates int
	Failed     int
	Users      int
	Mismatched int
	StartTime  time.Time
	Duration   time.Duration
}
