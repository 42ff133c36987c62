package service

import (
	"github.com/okian/gamebot/internal/adapters/repository"
	"github.com/okian/gamebot/internal/domain/resolve"
	"github.com/okian/gamebot/internal/domain/scoring"
	"github.com/okian/gamebot/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the delivery queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the delivery id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeEnabled turns delivery id deduplication on or off.
func WithDedupeEnabled(enabled bool) Option {
	return func(s *Service) {
		s.dedupeEnabled = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the ledger store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDiffProvider sets where push diffs are fetched from. It is ignored
// by the flat strategy.
func WithDiffProvider(p resolve.DiffProvider) Option {
	return func(s *Service) {
		s.diffs = p
	}
}

// WithStrategy selects the push award formula.
func WithStrategy(strategy scoring.Strategy) Option {
	return func(s *Service) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}

// WithDiffConcurrency bounds concurrent compare calls per push.
func WithDiffConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.diffConcurrency = n
		}
	}
}

// WithLedgerMaxRetries bounds ledger write attempts per delivery.
func WithLedgerMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.ledgerMaxRetries = n
		}
	}
}
