package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gamebot/internal/domain/ledger"
	"github.com/okian/gamebot/pkg/metrics"
)

// MemoryStore keeps the ledger in process. Each repository has its own
// treap so leaderboard reads never scan other repositories.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[ledger.Key]ledger.Entry
	boards    map[string]*node
	documents []ledger.Document
	docIDs    map[string]struct{}

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// NewMemoryStore constructs an empty in-memory store. The background
// metrics goroutine stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := newOptions(opts)
	s := &MemoryStore{
		entries:               make(map[ledger.Key]ledger.Entry),
		boards:                make(map[string]*node),
		docIDs:                make(map[string]struct{}),
		metricsUpdateInterval: o.metricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// ApplyIncrement implements ledger.Store. The read, the add and the level
// recompute happen under one write lock.
func (s *MemoryStore) ApplyIncrement(ctx context.Context, key ledger.Key, inc ledger.Increment, levelOf ledger.LevelFunc) (ledger.Entry, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}

	s.mu.Lock()
	old, ok := s.entries[key]
	root := s.boards[key.RepoFullName]
	if ok {
		root = deleteNode(root, key.Username, old.Experience)
	} else {
		old = ledger.Entry{Key: key}
	}
	updated := old.Apply(inc, levelOf)
	s.entries[key] = updated
	s.boards[key.RepoFullName] = insert(root, key.Username, updated.Experience)
	total := len(s.entries)
	s.mu.Unlock()

	if !ok {
		metrics.UpdateRepositoryRecordsTotal(total)
	}
	observeUpdate(start, nil)
	return updated, nil
}

// Find implements ledger.Store.
func (s *MemoryStore) Find(_ context.Context, key ledger.Key) (ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, key)
	}
	return e, nil
}

// Leaderboard implements ledger.Store in O(log n + limit).
func (s *MemoryStore) Leaderboard(_ context.Context, repoFullName string, limit int) ([]ledger.Entry, error) {
	start := time.Now()
	defer observeQuery(start)
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	root := s.boards[repoFullName]
	names := make([]string, 0, min(limit, nsize(root)))
	collectTopN(root, limit, &names)

	out := make([]ledger.Entry, 0, len(names))
	for _, name := range names {
		out = append(out, s.entries[ledger.Key{RepoFullName: repoFullName, Username: name}])
	}
	return out, nil
}

// RecordEvent implements ledger.EventLog.
func (s *MemoryStore) RecordEvent(_ context.Context, doc ledger.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.docIDs[doc.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
	}
	doc.Payload = append([]byte(nil), doc.Payload...)
	s.documents = append(s.documents, doc)
	s.docIDs[doc.ID] = struct{}{}
	return nil
}

// Documents returns a copy of the audit log in insertion order.
func (s *MemoryStore) Documents() []ledger.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Entries: int64(len(s.entries)), Documents: int64(len(s.documents))}, nil
}

// Close stops the metrics goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				st, _ := s.Stats(ctx)
				metrics.UpdateRepositoryRecordsTotal(int(st.Entries))
				metrics.UpdateRepositoryDocumentsTotal(int(st.Documents))
			}
		}
	}()
}
