// Package dedupe tracks which students a run has already accepted so that a
// student id found in more than one source file is processed once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen student ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Size returns the number of recorded ids.
	Size() int64
}

// inMemoryDeduper is an unbounded set. A run touches each student once, so
// nothing is ever evicted.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Size returns the number of recorded ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
