package policy

import (
	"strings"
	"time"

	"mercator-hq/warden/pkg/moderation"
)

// Policy holds the warn, mute and flag thresholds for one category.
type Policy struct {
	ID            string              `json:"id" yaml:"id"`
	Category      moderation.Category `json:"category" yaml:"category"`
	Name          string              `json:"name" yaml:"name"`
	Description   string              `json:"description,omitempty" yaml:"description,omitempty"`
	WarnThreshold float64             `json:"warn_threshold" yaml:"warn_threshold"`
	MuteThreshold float64             `json:"mute_threshold" yaml:"mute_threshold"`
	FlagThreshold float64             `json:"flag_threshold" yaml:"flag_threshold"`
	Enabled       bool                `json:"enabled" yaml:"enabled"`
	CreatedAt     time.Time           `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time           `json:"updated_at" yaml:"-"`
}

// IDFor returns the conventional policy id for a category, e.g.
// policy-hate-speech.
func IDFor(category moderation.Category) string {
	return "policy-" + strings.ReplaceAll(string(category), "_", "-")
}

// Validate checks that every threshold is within [0,1] and that
// warn <= mute <= flag.
func (p Policy) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"warn_threshold", p.WarnThreshold},
		{"mute_threshold", p.MuteThreshold},
		{"flag_threshold", p.FlagThreshold},
	} {
		// NaN fails both comparisons.
		if !(f.value >= 0 && f.value <= 1) {
			return &moderation.ThresholdRangeError{PolicyID: p.ID, Field: f.name, Value: f.value}
		}
	}

	if p.WarnThreshold > p.MuteThreshold || p.MuteThreshold > p.FlagThreshold {
		return &moderation.ThresholdOrderError{
			PolicyID: p.ID,
			Warn:     p.WarnThreshold,
			Mute:     p.MuteThreshold,
			Flag:     p.FlagThreshold,
		}
	}
	return nil
}

// Update is a partial policy update. Nil fields are left unchanged.
type Update struct {
	Name          *string  `json:"name,omitempty" yaml:"name,omitempty"`
	Description   *string  `json:"description,omitempty" yaml:"description,omitempty"`
	WarnThreshold *float64 `json:"warn_threshold,omitempty" yaml:"warn_threshold,omitempty"`
	MuteThreshold *float64 `json:"mute_threshold,omitempty" yaml:"mute_threshold,omitempty"`
	FlagThreshold *float64 `json:"flag_threshold,omitempty" yaml:"flag_threshold,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEmpty reports whether u changes nothing.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.Description == nil &&
		u.WarnThreshold == nil && u.MuteThreshold == nil && u.FlagThreshold == nil &&
		u.Enabled == nil
}

// Apply returns p overlaid with the non-nil fields of u. p is not modified.
func (p Policy) Apply(u Update) Policy {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.WarnThreshold != nil {
		p.WarnThreshold = *u.WarnThreshold
	}
	if u.MuteThreshold != nil {
		p.MuteThreshold = *u.MuteThreshold
	}
	if u.FlagThreshold != nil {
		p.FlagThreshold = *u.FlagThreshold
	}
	if u.Enabled != nil {
		p.Enabled = *u.Enabled
	}
	return p
}

// Change is the old and new value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff returns the fields that differ between before and after, keyed by
// their JSON name.
func Diff(before, after Policy) map[string]Change {
	changes := make(map[string]Change)
	if before.Name != after.Name {
		changes["name"] = Change{before.Name, after.Name}
	}
	if before.Description != after.Description {
		changes["description"] = Change{before.Description, after.Description}
	}
	if before.WarnThreshold != after.WarnThreshold {
		changes["warn_threshold"] = Change{before.WarnThreshold, after.WarnThreshold}
	}
	if before.MuteThreshold != after.MuteThreshold {
		changes["mute_threshold"] = Change{before.MuteThreshold, after.MuteThreshold}
	}
	if before.FlagThreshold != after.FlagThreshold {
		changes["flag_threshold"] = Change{before.FlagThreshold, after.FlagThreshold}
	}
	if before.Enabled != after.Enabled {
		changes["enabled"] = Change{before.Enabled, after.Enabled}
	}
	return changes
}
