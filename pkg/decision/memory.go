package decision

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"mercator-hq/warden/pkg/moderation"
)

type memoryRecord struct {
	seq      uint64
	decision *moderation.Decision
}

// MemoryStore implements Store in process memory. Decisions are lost on
// restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	nextSeq uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

// Create stores a copy of d.
func (s *MemoryStore) Create(ctx context.Context, d *moderation.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[d.ID]; exists {
		return fmt.Errorf("decision %s already exists", d.ID)
	}
	s.nextSeq++
	s.records[d.ID] = &memoryRecord{seq: s.nextSeq, decision: d.Clone()}
	return nil
}

// Get returns a copy of the decision.
func (s *MemoryStore) Get(ctx context.Context, id string) (*moderation.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, moderation.NewNotFoundError("decision", id)
	}
	return rec.decision.Clone(), nil
}

// Update writes the mutable fields of d if the stored status equals from.
func (s *MemoryStore) Update(ctx context.Context, d *moderation.Decision, from moderation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[d.ID]
	if !ok {
		return moderation.NewNotFoundError("decision", d.ID)
	}
	if rec.decision.Status != from {
		return fmt.Errorf("%w: decision %s is %s, expected %s", ErrConflict, d.ID, rec.decision.Status, from)
	}

	src := d.Clone()
	stored := rec.decision
	stored.Status = src.Status
	stored.Review = src.Review
	stored.Overturn = src.Overturn
	stored.UpdatedAt = src.UpdatedAt
	return nil
}

// Remove deletes the decision.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return moderation.NewNotFoundError("decision", id)
	}
	delete(s.records, id)
	return nil
}

// Query returns matching decisions, newest first.
func (s *MemoryStore) Query(ctx context.Context, q *Query) ([]*moderation.Decision, error) {
	s.mu.RLock()
	var matched []*memoryRecord
	for _, rec := range s.records {
		if q.Matches(rec.decision) {
			matched = append(matched, rec)
		}
	}

	slices.SortFunc(matched, func(a, b *memoryRecord) int {
		if c := b.decision.Timestamp.Compare(a.decision.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	if q.OldestFirst {
		slices.Reverse(matched)
	}

	matched = paginate(matched, q.Offset, q.Limit)
	results := make([]*moderation.Decision, 0, len(matched))
	for _, rec := range matched {
		results = append(results, rec.decision.Clone())
	}
	s.mu.RUnlock()

	return results, nil
}

// Count returns the number of matching decisions.
func (s *MemoryStore) Count(ctx context.Context, q *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.records {
		if q.Matches(rec.decision) {
			n++
		}
	}
	return n, nil
}

// Stats aggregates every stored decision.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := NewStats()
	var sum float64
	var positive int64
	for _, rec := range s.records {
		d := rec.decision
		stats.TotalDecisions++
		stats.ByAction[d.Action]++
		stats.ByClassification[d.Classification]++
		stats.ByStatus[d.Status]++
		if d.Confidence > 0 {
			sum += d.Confidence
			positive++
		}
	}
	stats.AverageConfidence = averageConfidence(sum, positive)
	return stats, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Size returns the number of stored decisions.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func paginate[T any](items []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
