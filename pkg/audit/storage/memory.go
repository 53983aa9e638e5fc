package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/moderation"
)

// MemoryStorage implements audit.Storage in process memory. Entries are kept
// in append order and are lost on restart.
type MemoryStorage struct {
	entries []*audit.Entry
	byID    map[string]*audit.Entry
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID: make(map[string]*audit.Entry),
	}
}

// Append stores a copy of entry.
func (s *MemoryStorage) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[entry.ID]; exists {
		return moderation.NewStorageError("memory", "append", fmt.Errorf("duplicate audit id %s", entry.ID))
	}

	stored := entry.Clone()
	s.entries = append(s.entries, stored)
	s.byID[stored.ID] = stored

	return nil
}

// Get returns a copy of the entry with the given id.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, moderation.NewNotFoundError("audit entry", id)
	}
	return entry.Clone(), nil
}

// Query retrieves entries matching the query filters, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	s.mu.RLock()
	var results []*audit.Entry
	for _, entry := range s.entries {
		if matchesQuery(entry, query) {
			results = append(results, entry.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(results, newestFirst)

	return paginate(results, query.Offset, query.Limit), nil
}

// Count returns the number of entries matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, entry := range s.entries {
		if matchesQuery(entry, query) {
			count++
		}
	}
	return count, nil
}

// Stats aggregates every stored entry.
func (s *MemoryStorage) Stats(ctx context.Context) (*audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := audit.NewStats()
	for _, entry := range s.entries {
		stats.TotalEntries++
		stats.ByActionType[entry.ActionType]++
		stats.ByActor[entry.Actor]++

		ts := entry.Timestamp
		if stats.OldestEntry == nil || ts.Before(*stats.OldestEntry) {
			stats.OldestEntry = &ts
		}
		if stats.NewestEntry == nil || ts.After(*stats.NewestEntry) {
			stats.NewestEntry = &ts
		}
	}
	return stats, nil
}

// LastSequence returns the highest stored sequence number.
func (s *MemoryStorage) LastSequence(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for _, entry := range s.entries {
		last = max(last, entry.Sequence)
	}
	return last, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op; entries stay readable so a closed log can still be exported in tests.
func (s *MemoryStorage) Close() error {
	return nil
}

// Size returns the number of entries in storage (for testing).
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// matchesQuery checks if an entry matches the query filters.
func matchesQuery(entry *audit.Entry, query *audit.Query) bool {
	if query.StartTime != nil && entry.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && entry.Timestamp.After(*query.EndTime) {
		return false
	}
	if query.DecisionID != "" && entry.DecisionID != query.DecisionID {
		return false
	}
	if query.ActionType != "" && entry.ActionType != query.ActionType {
		return false
	}
	if query.Actor != "" && entry.Actor != query.Actor {
		return false
	}
	return true
}

// newestFirst orders by timestamp descending, then sequence descending.
func newestFirst(a, b *audit.Entry) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(b.Sequence, a.Sequence)
}

func paginate(entries []*audit.Entry, offset, limit int) []*audit.Entry {
	offset = max(offset, 0)
	if offset >= len(entries) {
		return []*audit.Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
