package policy

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/moderation"
)

// Service applies audited policy mutations. Every committed change has a
// policy_updated audit entry written before the new value becomes visible.
type Service struct {
	store     *Store
	audit     audit.Appender
	publisher broadcast.Publisher
	logger    *slog.Logger
}

// NewService creates a Service. A nil publisher discards events.
func NewService(store *Store, appender audit.Appender, publisher broadcast.Publisher) *Service {
	if publisher == nil {
		publisher = broadcast.Discard
	}
	return &Service{
		store:     store,
		audit:     appender,
		publisher: publisher,
		logger:    slog.Default().With("component", "policy.service"),
	}
}

// Store returns the underlying store for read access.
func (s *Service) Store() *Store {
	return s.store
}

// Get returns the policy for category.
func (s *Service) Get(category moderation.Category) (Policy, error) {
	return s.store.Get(category)
}

// GetByID returns the policy with the given id.
func (s *Service) GetByID(id string) (Policy, error) {
	return s.store.GetByID(id)
}

// List returns every policy.
func (s *Service) List() []Policy {
	return s.store.List()
}

// Update applies a partial update on behalf of actor.
func (s *Service) Update(ctx context.Context, id string, u Update, actor audit.Actor) (Policy, error) {
	var entry *audit.Entry
	p, err := s.store.UpdateFunc(id, u, func(before, after Policy) error {
		changes := Diff(before, after)
		metadata := map[string]any{
			"policy_id": after.ID,
			"changes":   changes,
		}
		var err error
		entry, err = s.record(ctx, after, actor, metadata)
		return err
	})
	if err != nil {
		s.logger.Warn("policy update rejected", "policy_id", id, "actor", actor, "error", err)
		return Policy{}, err
	}

	s.logger.Info("policy updated",
		"policy_id", p.ID,
		"actor", actor,
		"warn_threshold", p.WarnThreshold,
		"mute_threshold", p.MuteThreshold,
		"flag_threshold", p.FlagThreshold,
		"enabled", p.Enabled,
	)
	s.publisher.PublishAudit(entry)
	return p, nil
}

// Toggle flips the enabled flag on behalf of actor.
func (s *Service) Toggle(ctx context.Context, id string, actor audit.Actor) (Policy, error) {
	var entry *audit.Entry
	p, err := s.store.ToggleFunc(id, func(before, after Policy) error {
		metadata := map[string]any{
			"policy_id":   after.ID,
			"old_enabled": before.Enabled,
			"new_enabled": after.Enabled,
		}
		var err error
		entry, err = s.record(ctx, after, actor, metadata)
		return err
	})
	if err != nil {
		return Policy{}, err
	}

	s.logger.Info("policy toggled", "policy_id", p.ID, "actor", actor, "enabled", p.Enabled)
	s.publisher.PublishAudit(entry)
	return p, nil
}

func (s *Service) record(ctx context.Context, p Policy, actor audit.Actor, metadata map[string]any) (*audit.Entry, error) {
	entry, err := s.audit.Append(ctx, audit.Entry{
		ActionType: audit.ActionPolicyUpdated,
		Actor:      actor,
		Reason:     fmt.Sprintf("Policy updated: %s", p.Name),
		Metadata:   metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("record policy update: %w", err)
	}
	return entry, nil
}
