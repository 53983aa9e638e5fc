package policy

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"mercator-hq/warden/pkg/moderation"
)

// CommitFunc runs while the policy's write lock is held, after the merged
// policy has been validated and before it becomes visible. A non-nil error
// aborts the update.
type CommitFunc func(before, after Policy) error

type record struct {
	mu     sync.RWMutex
	policy Policy
}

// Store holds policies in process memory. Each policy has its own
// read/write lock, so readers never see a partially applied update and
// updates to different policies do not contend.
type Store struct {
	now func() time.Time

	mu         sync.RWMutex
	byID       map[string]*record
	byCategory map[moderation.Category]*record
	order      []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:        time.Now,
		byID:       make(map[string]*record),
		byCategory: make(map[moderation.Category]*record),
	}
}

// NewSeededStore creates a store holding the default policies.
func NewSeededStore() *Store {
	s := NewStore()
	for _, p := range Defaults(s.now().UTC()) {
		if err := s.Add(p); err != nil {
			panic(fmt.Sprintf("policy: invalid seed %s: %v", p.ID, err))
		}
	}
	return s
}

// Add inserts a new policy. Policies are never removed.
func (s *Store) Add(p Policy) error {
	if p.ID == "" {
		p.ID = IDFor(p.Category)
	}
	if !p.Category.Valid() || p.Category == moderation.CategoryNone {
		return fmt.Errorf("policy %s: category %q cannot carry thresholds", p.ID, p.Category)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return fmt.Errorf("policy %s already exists", p.ID)
	}
	if _, exists := s.byCategory[p.Category]; exists {
		return fmt.Errorf("category %s already has a policy", p.Category)
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	rec := &record{policy: p}
	s.byID[p.ID] = rec
	s.byCategory[p.Category] = rec
	s.order = append(s.order, p.ID)
	return nil
}

// Get returns a snapshot of the policy for category.
func (s *Store) Get(category moderation.Category) (Policy, error) {
	s.mu.RLock()
	rec, ok := s.byCategory[category]
	s.mu.RUnlock()
	if !ok {
		return Policy{}, moderation.NewNotFoundError("policy", string(category))
	}
	return rec.snapshot(), nil
}

// GetByID returns a snapshot of the policy with the given id.
func (s *Store) GetByID(id string) (Policy, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return Policy{}, err
	}
	return rec.snapshot(), nil
}

// List returns snapshots of every policy in insertion order.
func (s *Store) List() []Policy {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.order))
	for _, id := range s.order {
		recs = append(recs, s.byID[id])
	}
	s.mu.RUnlock()

	out := make([]Policy, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.snapshot())
	}
	return out
}

// IDs returns every policy id in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Update merges u into the policy and commits it if the result is valid.
func (s *Store) Update(id string, u Update) (Policy, error) {
	return s.UpdateFunc(id, u, nil)
}

// UpdateFunc merges u into the policy, validates the merged result and runs
// commit before publishing it. On any error the stored policy is unchanged.
func (s *Store) UpdateFunc(id string, u Update, commit CommitFunc) (Policy, error) {
	return s.mutate(id, func(cur Policy) Policy { return cur.Apply(u) }, commit)
}

// Toggle flips the enabled flag.
func (s *Store) Toggle(id string) (Policy, error) {
	return s.ToggleFunc(id, nil)
}

// ToggleFunc flips the enabled flag, running commit before publishing.
func (s *Store) ToggleFunc(id string, commit CommitFunc) (Policy, error) {
	return s.mutate(id, func(cur Policy) Policy {
		cur.Enabled = !cur.Enabled
		return cur
	}, commit)
}

func (s *Store) mutate(id string, change func(Policy) Policy, commit CommitFunc) (Policy, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return Policy{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	before := rec.policy
	after := change(before)
	after.ID, after.Category, after.CreatedAt = before.ID, before.Category, before.CreatedAt

	if err := after.Validate(); err != nil {
		return Policy{}, err
	}
	after.UpdatedAt = s.now().UTC()

	if commit != nil {
		if err := commit(before, after); err != nil {
			return Policy{}, err
		}
	}

	rec.policy = after
	return after, nil
}

func (s *Store) lookup(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, moderation.NewNotFoundError("policy", id)
	}
	return rec, nil
}

func (r *record) snapshot() Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}
