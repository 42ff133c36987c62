// Package service wires the scoring pipeline together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/gamebot/internal/adapters/mq/queue"
	workerpool "github.com/okian/gamebot/internal/adapters/mq/worker"
	"github.com/okian/gamebot/internal/adapters/repository"
	"github.com/okian/gamebot/internal/domain/dedupe"
	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/okian/gamebot/internal/domain/resolve"
	"github.com/okian/gamebot/internal/domain/scoring"
	"github.com/okian/gamebot/internal/domain/types"
	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

// AckStatus tells the gateway how a delivery was handled.
type AckStatus string

// Acknowledgement statuses.
const (
	AckAccepted  AckStatus = "accepted"
	AckDuplicate AckStatus = "duplicate"
	AckIgnored   AckStatus = "ignored"
)

// Service accepts webhook deliveries, scores them on a worker pool and
// serves ledger reads.
type Service struct {
	mu sync.RWMutex

	// Pipeline
	normalizer *normalize.Normalizer
	resolver   *resolve.Resolver
	calculator *scoring.Calculator
	merger     *ledger.Merger
	store      repository.Store
	diffs      resolve.DiffProvider
	deduper    dedupe.Deduper
	queue      eventqueue.Queue
	pool       *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	dedupeEnabled    bool
	strategy         scoring.Strategy
	diffConcurrency  int
	ledgerMaxRetries int

	// State
	started   bool
	closeOnce sync.Once
	now       func() time.Time

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps the ledger in
// memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        10_000,
		dedupeSize:       50_000,
		dedupeEnabled:    true,
		strategy:         scoring.DiffWeighted,
		diffConcurrency:  4,
		ledgerMaxRetries: 5,
		now:              time.Now,
		logger:           logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore(context.Background())
	}

	resolverOpts := []resolve.Option{resolve.WithConcurrency(s.diffConcurrency)}
	if s.strategy.UsesDiffs() && s.diffs != nil {
		resolverOpts = append(resolverOpts, resolve.WithDiffProvider(s.diffs))
	}
	s.normalizer = normalize.New()
	s.resolver = resolve.New(resolverOpts...)
	s.calculator = scoring.NewCalculator(scoring.WithStrategy(s.strategy))
	s.merger = ledger.NewMerger(s.store, ledger.WithMaxAttempts(s.ledgerMaxRetries))
	return s
}

// Start creates the queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.strategy.UsesDiffs() && s.diffs == nil {
		return fmt.Errorf("%w: strategy %s", ErrNoDiffProvider, s.strategy)
	}

	if s.dedupeEnabled {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	} else {
		s.deduper = dedupe.Disabled()
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "gamebot service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("dedupe", s.dedupeEnabled),
		logger.String("strategy", string(s.strategy)),
		logger.Bool("diffs", s.resolver.FetchesDiffs()),
	)
	return nil
}

// Stop drains the queue, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if s.started {
		s.logger.Info(ctx, "stopping gamebot service...")
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
		s.started = false
	}
	s.closeOnce.Do(func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "closing ledger store", logger.Error(err))
		}
	})
	s.logger.Info(ctx, "gamebot service stopped")
}

// Accept validates a delivery and queues it for scoring. Unsupported
// events are acknowledged as ignored; malformed ones fail with
// normalize.ErrMalformedPayload. An empty deliveryID gets a generated one.
func (s *Service) Accept(ctx context.Context, kind, action, deliveryID string, body []byte) (AckStatus, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", deliveryID, ErrNotStarted
	}

	if !normalize.Supported(kind, action) {
		metrics.RecordDeliveryIgnored(kind)
		return AckIgnored, deliveryID, nil
	}
	ev, err := s.normalizer.Normalize(kind, action, body)
	if errors.Is(err, normalize.ErrUnsupportedEvent) {
		metrics.RecordDeliveryIgnored(kind)
		return AckIgnored, deliveryID, nil
	}
	if err != nil {
		metrics.RecordDeliveryRejected("malformed")
		s.logger.Warn(ctx, "malformed delivery",
			logger.String("delivery", deliveryID),
			logger.String("event", kind),
			logger.Error(err),
		)
		return "", deliveryID, err
	}

	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	if s.deduper.SeenAndRecord(ctx, deliveryID) {
		metrics.RecordDeliveryDuplicate()
		s.logger.Debug(ctx, "duplicate delivery, skipping", logger.String("delivery", deliveryID))
		return AckDuplicate, deliveryID, nil
	}

	d := model.Delivery{ID: deliveryID, ReceivedAt: s.now(), Event: ev}
	if err := s.queue.Enqueue(ctx, d); err != nil {
		s.deduper.Unrecord(ctx, deliveryID)
		metrics.RecordDeliveryRejected("backpressure")
		return "", deliveryID, fmt.Errorf("%w: %w", ErrBackpressure, err)
	}
	metrics.RecordDeliveryReceived(string(ev.Kind()))
	return AckAccepted, deliveryID, nil
}

// Evaluate resolves and scores ev without writing anything.
func (s *Service) Evaluate(ctx context.Context, deliveryID string, ev model.Event) (model.ScoredEvent, ledger.Increment, error) {
	scored := model.ScoredEvent{DeliveryID: deliveryID, Event: ev}
	var summary scoring.PushSummary

	if push, ok := ev.(model.Push); ok {
		if s.strategy.UsesDiffs() && !s.resolver.FetchesDiffs() {
			return model.ScoredEvent{}, ledger.Increment{}, fmt.Errorf("%w: %w", resolve.ErrDiffUnavailable, ErrNoDiffProvider)
		}
		res, err := s.resolver.Resolve(ctx, push)
		if err != nil {
			return model.ScoredEvent{}, ledger.Increment{}, err
		}
		scored.ResolvedCommits = res.Commits
		summary = scoring.PushSummary{DistinctCommits: res.DistinctCommits, ChangedLines: res.ChangedLines}
	}

	inc := s.calculator.Increment(ev, summary)
	scored.ExperienceAwarded = inc.Experience
	return scored, inc, nil
}

// Apply merges inc into the ledger and then records the audit document
// for scored. Audit failures are logged; merge failures are returned and
// leave no document behind.
func (s *Service) Apply(ctx context.Context, scored model.ScoredEvent, receivedAt time.Time, inc ledger.Increment) (ledger.Entry, error) {
	key := ledger.Key{RepoFullName: scored.Event.Repository().FullName, Username: scored.Event.Actor().Login}
	entry, err := s.merger.Merge(ctx, key, inc)
	if err != nil {
		return ledger.Entry{}, err
	}

	doc, err := auditDocument(scored, receivedAt, s.now())
	if err == nil {
		err = s.store.RecordEvent(ctx, doc)
	}
	if err != nil {
		metrics.RecordErrorByComponent("service", "audit")
		s.logger.Warn(ctx, "audit record not written",
			logger.String("delivery", scored.DeliveryID),
			logger.Error(err),
		)
	}
	return entry, nil
}

// Process scores one delivery end to end. On failure the delivery id is
// forgotten so a redelivery can apply it.
func (s *Service) Process(ctx context.Context, d model.Delivery) error {
	start := time.Now()
	kind := string(d.Event.Kind())

	scored, inc, err := s.Evaluate(ctx, d.ID, d.Event)
	if err == nil {
		var entry ledger.Entry
		entry, err = s.Apply(ctx, scored, d.ReceivedAt, inc)
		if err == nil {
			metrics.RecordEventScored(kind, scored.ExperienceAwarded)
			metrics.RecordProcessingLatency(float64(time.Since(start).Milliseconds()))
			s.logger.Info(ctx, "delivery scored",
				logger.String("delivery", d.ID),
				logger.String("kind", kind),
				logger.String("key", entry.Key.String()),
				logger.Int64("awarded", scored.ExperienceAwarded),
				logger.Int64("experience", entry.Experience),
				logger.Int("level", entry.Level),
			)
			return nil
		}
	}

	if s.deduper != nil {
		s.deduper.Unrecord(ctx, d.ID)
	}
	reason := "ledger"
	if errors.Is(err, resolve.ErrDiffUnavailable) {
		reason = "diff_unavailable"
	}
	metrics.RecordDeliveryRejected(reason)
	return fmt.Errorf("delivery %s: %w", d.ID, err)
}

// Normalize exposes the normalizer for offline replays.
func (s *Service) Normalize(kind, action string, body []byte) (model.Event, error) {
	return s.normalizer.Normalize(kind, action, body)
}

// Entry returns the ledger entry of username in repo.
func (s *Service) Entry(ctx context.Context, repo, username string) (types.LedgerEntry, error) {
	e, err := s.merger.Find(ctx, ledger.Key{RepoFullName: repo, Username: username})
	if err != nil {
		return types.LedgerEntry{}, err
	}
	return types.FromEntry(e), nil
}

// Leaderboard returns the top limit users of repo.
func (s *Service) Leaderboard(ctx context.Context, repo string, limit int) (types.Leaderboard, error) {
	entries, err := s.store.Leaderboard(ctx, repo, limit)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.NewLeaderboard(repo, entries), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeEnabled": s.dedupeEnabled,
		"dedupeSize":    s.dedupeSize,
		"strategy":      string(s.strategy),
		"fetchesDiffs":  s.resolver.FetchesDiffs(),
	}

	if st, err := s.store.Stats(ctx); err == nil {
		stats["ledgerEntries"] = st.Entries
		stats["auditDocuments"] = st.Documents
		metrics.UpdateRepositoryRecordsTotal(int(st.Entries))
	} else {
		s.logger.Warn(ctx, "store stats unavailable", logger.Error(err))
	}

	if s.started {
		ps := s.pool.Stats()
		stats["queueLength"] = s.queue.Len()
		stats["deduped"] = s.deduper.Size()
		stats["processed"] = ps.Processed
		stats["failed"] = ps.Failed
		stats["active"] = ps.Active
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}
