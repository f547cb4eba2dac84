// Package repository collects the per-student results of a run until the
// matrix is assembled.
package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/gradevec/internal/domain/model"
)

// Store is the only state shared between workers.
type Store interface {
	// Put stores the scored entries of one student.
	// Returns ErrDuplicateStudent if the student was already stored.
	Put(ctx context.Context, studentID string, entries []model.ScoredEntry, stats model.StudentStats) error

	// Entries returns every stored entry ordered by student, then course.
	Entries(ctx context.Context) []model.ScoredEntry

	// Stats returns the decode statistics of a student.
	// Returns ErrNotFound if the student is unknown.
	Stats(ctx context.Context, studentID string) (model.StudentStats, error)

	// Count returns the number of stored students.
	Count(ctx context.Context) int

	// RecordSkip notes a student dropped from the run.
	RecordSkip(ctx context.Context, skip model.Skip)

	// Skips returns the dropped students ordered by student id.
	Skips(ctx context.Context) []model.Skip
}

type studentResult struct {
	entries []model.ScoredEntry
	stats   model.StudentStats
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]studentResult
	skips    []model.Skip
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{students: make(map[string]studentResult)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, studentID string, entries []model.ScoredEntry, stats model.StudentStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.students[studentID]; exists {
		return ErrDuplicateStudent
	}
	s.students[studentID] = studentResult{
		entries: append([]model.ScoredEntry(nil), entries...),
		stats:   stats,
	}
	return nil
}

// Entries implements Store.
func (s *MemoryStore) Entries(_ context.Context) []model.ScoredEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.students))
	total := 0
	for id, r := range s.students {
		ids = append(ids, id)
		total += len(r.entries)
	}
	sort.Strings(ids)

	out := make([]model.ScoredEntry, 0, total)
	for _, id := range ids {
		entries := s.students[id].entries
		start := len(out)
		out = append(out, entries...)
		sort.Slice(out[start:], func(i, j int) bool {
			return out[start+i].Course < out[start+j].Course
		})
	}
	return out
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context, studentID string) (model.StudentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.students[studentID]
	if !ok {
		return model.StudentStats{}, ErrNotFound
	}
	return r.stats, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students)
}

// RecordSkip implements Store.
func (s *MemoryStore) RecordSkip(_ context.Context, skip model.Skip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skips = append(s.skips, skip)
}

// Skips implements Store.
func (s *MemoryStore) Skips(_ context.Context) []model.Skip {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.Skip(nil), s.skips...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
