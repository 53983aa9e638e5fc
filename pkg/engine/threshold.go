package engine

import (
	"errors"

	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/policy"
)

// ActionFor compares confidence against the policy thresholds, highest tier
// first. Thresholds are inclusive lower bounds, so a tie resolves to the
// more severe action. The policy's enabled flag is not consulted.
func ActionFor(p policy.Policy, confidence float64) moderation.Action {
	switch {
	case confidence >= p.FlagThreshold:
		return moderation.ActionFlagForReview
	case confidence >= p.MuteThreshold:
		return moderation.ActionMute
	case confidence >= p.WarnThreshold:
		return moderation.ActionWarn
	default:
		return moderation.ActionNone
	}
}

// resolve picks the action for cls from a snapshot of its category's
// policy. The none category, a missing policy and a disabled policy all
// resolve to ActionNone with no policy id.
func resolve(policies PolicySource, cls moderation.Classification) (moderation.Action, policy.Policy, error) {
	if cls.Category == moderation.CategoryNone {
		return moderation.ActionNone, policy.Policy{}, nil
	}

	p, err := policies.Get(cls.Category)
	if err != nil {
		if errors.Is(err, moderation.ErrNotFound) {
			return moderation.ActionNone, policy.Policy{}, nil
		}
		return "", policy.Policy{}, err
	}
	if !p.Enabled {
		return moderation.ActionNone, policy.Policy{}, nil
	}
	return ActionFor(p, cls.Confidence), p, nil
}
