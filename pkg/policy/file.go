package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/moderation"
)

// File is a declarative policy threshold file:
//
//	policies:
//	  - category: harassment
//	    warn_threshold: 0.3
//	    mute_threshold: 0.6
//	    flag_threshold: 0.85
//	  - id: policy-spam
//	    enabled: false
type File struct {
	Policies []FileEntry `yaml:"policies"`
}

// FileEntry targets one policy by id or, when id is empty, by category.
type FileEntry struct {
	ID       string              `yaml:"id,omitempty"`
	Category moderation.Category `yaml:"category,omitempty"`
	Update   `yaml:",inline"`
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %q: %w", path, err)
	}
	return f, nil
}

// ParseFile parses policy file content. Unknown fields are rejected.
func ParseFile(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// resolved pairs a file entry with the policy it targets and the merged result.
type resolved struct {
	entry  FileEntry
	before Policy
	after  Policy
}

// Validate checks every entry against the policies in store without
// changing them.
func (f *File) Validate(store *Store) error {
	_, err := f.resolve(store)
	return err
}

// resolve matches every entry to a stored policy and validates the merged
// result. It fails on the first invalid entry.
func (f *File) resolve(store *Store) ([]resolved, error) {
	seen := make(map[string]bool, len(f.Policies))
	out := make([]resolved, 0, len(f.Policies))

	for i, entry := range f.Policies {
		var (
			p   Policy
			err error
		)
		switch {
		case entry.ID != "":
			p, err = store.GetByID(entry.ID)
		case entry.Category != "":
			p, err = store.Get(entry.Category)
		default:
			return nil, fmt.Errorf("policies[%d]: id or category is required", i)
		}
		if err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
		if entry.ID != "" && entry.Category != "" && entry.Category != p.Category {
			return nil, fmt.Errorf("policies[%d]: policy %s has category %s, not %s", i, p.ID, p.Category, entry.Category)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("policies[%d]: policy %s listed more than once", i, p.ID)
		}
		seen[p.ID] = true

		after := p.Apply(entry.Update)
		if err := after.Validate(); err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
		out = append(out, resolved{entry: entry, before: p, after: after})
	}
	return out, nil
}

// ApplyFile validates every entry of f and then applies the entries that
// change something. Each applied entry is audited on behalf of actor. It
// returns the number of policies changed.
func (s *Service) ApplyFile(ctx context.Context, f *File, actor audit.Actor) (int, error) {
	entries, err := f.resolve(s.store)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, r := range entries {
		if len(Diff(r.before, r.after)) == 0 {
			continue
		}
		if _, err := s.Update(ctx, r.before.ID, r.entry.Update, actor); err != nil {
			return applied, fmt.Errorf("apply policy %s: %w", r.before.ID, err)
		}
		applied++
	}

	s.logger.Info("policy file applied", "entries", len(entries), "changed", applied, "actor", actor)
	return applied, nil
}

// ReloadFile loads path and applies it as the system actor.
func (s *Service) ReloadFile(ctx context.Context, path string) (int, error) {
	f, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	return s.ApplyFile(ctx, f, audit.ActorSystem)
}
