// Package dedupe remembers webhook delivery ids so redeliveries are not
// scored twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen delivery ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a later redelivery is processed. Used when a
	// delivery was recorded but could not be applied.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type slot struct {
	id  string
	seq uint64
}

// inMemoryDeduper keeps at most maxSize ids and evicts the oldest first.
// With maxSize <= 0 it never evicts.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	ring    []slot
	next    int
	filled  int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seq++
	if d.maxSize > 0 {
		if d.filled == len(d.ring) {
			old := d.ring[d.next]
			// A slot may be stale if its id was unrecorded or re-recorded.
			if seq, ok := d.seen[old.id]; ok && seq == old.seq {
				delete(d.seen, old.id)
			}
		} else {
			d.filled++
		}
		d.ring[d.next] = slot{id: id, seq: d.seq}
		d.next = (d.next + 1) % len(d.ring)
	}
	d.seen[id] = d.seq
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

// Disabled returns a Deduper that never reports a duplicate.
func Disabled() Deduper { return noop{} }

type noop struct{}

func (noop) SeenAndRecord(context.Context, string) bool { return false }
func (noop) Unrecord(context.Context, string)           {}
func (noop) Size() int64                                { return 0 }
