package policy

import (
	"errors"
	"math"
	"sync"
	"testing"

	"mercator-hq/warden/pkg/moderation"
)

func ptr[T any](v T) *T { return &v }

func TestDefaults(t *testing.T) {
	store := NewSeededStore()
	policies := store.List()

	if len(policies) != 5 {
		t.Fatalf("Expected 5 seed policies, got %d", len(policies))
	}

	hate, err := store.Get(moderation.CategoryHateSpeech)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if hate.ID != "policy-hate-speech" {
		t.Errorf("Expected id policy-hate-speech, got %s", hate.ID)
	}
	if hate.WarnThreshold != 0.4 || hate.MuteThreshold != 0.6 || hate.FlagThreshold != 0.75 {
		t.Errorf("Unexpected hate speech thresholds: %+v", hate)
	}
	for _, p := range policies {
		if !p.Enabled {
			t.Errorf("Seed policy %s should be enabled", p.ID)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("Seed policy %s invalid: %v", p.ID, err)
		}
	}

	if _, err := store.Get(moderation.CategoryNone); !errors.Is(err, moderation.ErrNotFound) {
		t.Errorf("Expected no policy for category none, got %v", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name             string
		warn, mute, flag float64
		wantErr          error
	}{
		{"ordered", 0.3, 0.6, 0.85, nil},
		{"all equal", 0.5, 0.5, 0.5, nil},
		{"bounds", 0, 0, 1, nil},
		{"warn above mute", 0.7, 0.5, 0.9, moderation.ErrInvalidThresholdOrder},
		{"mute above flag", 0.3, 0.9, 0.8, moderation.ErrInvalidThresholdOrder},
		{"negative", -0.1, 0.5, 0.9, moderation.ErrThresholdOutOfRange},
		{"above one", 0.1, 0.5, 1.1, moderation.ErrThresholdOutOfRange},
		{"nan", math.NaN(), 0.5, 0.9, moderation.ErrThresholdOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{ID: "p", WarnThreshold: tt.warn, MuteThreshold: tt.mute, FlagThreshold: tt.flag}
			err := p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_UpdateMergesPartial(t *testing.T) {
	store := NewSeededStore()

	updated, err := store.Update("policy-harassment", Update{WarnThreshold: ptr(0.3), MuteThreshold: ptr(0.6)})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.WarnThreshold != 0.3 || updated.MuteThreshold != 0.6 || updated.FlagThreshold != 0.85 {
		t.Errorf("Unexpected merged thresholds: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) && !updated.UpdatedAt.Equal(updated.CreatedAt) {
		t.Error("UpdatedAt should not precede CreatedAt")
	}
}

func TestStore_UpdateRejectsOutOfOrder(t *testing.T) {
	store := NewSeededStore()
	before, _ := store.GetByID("policy-harassment")

	_, err := store.Update("policy-harassment", Update{WarnThreshold: ptr(0.7), MuteThreshold: ptr(0.5)})
	if !errors.Is(err, moderation.ErrInvalidThresholdOrder) {
		t.Fatalf("Expected ErrInvalidThresholdOrder, got %v", err)
	}

	var orderErr *moderation.ThresholdOrderError
	if !errors.As(err, &orderErr) || orderErr.PolicyID != "policy-harassment" {
		t.Errorf("Expected ThresholdOrderError for policy-harassment, got %v", err)
	}

	after, _ := store.GetByID("policy-harassment")
	if after != before {
		t.Errorf("Stored policy changed after rejected update: %+v -> %+v", before, after)
	}
}

func TestStore_UpdateValidatesMergedResult(t *testing.T) {
	store := NewSeededStore()

	// Spam mute is 0.8; a warn of 0.85 alone breaks the order.
	if _, err := store.Update("policy-spam", Update{WarnThreshold: ptr(0.85)}); !errors.Is(err, moderation.ErrInvalidThresholdOrder) {
		t.Errorf("Expected merged validation to reject warn above stored mute, got %v", err)
	}
}

func TestStore_CommitFailureLeavesPolicyUnchanged(t *testing.T) {
	store := NewSeededStore()
	before, _ := store.GetByID("policy-spam")

	boom := errors.New("audit down")
	_, err := store.UpdateFunc("policy-spam", Update{WarnThreshold: ptr(0.1)}, func(_, _ Policy) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Expected commit error, got %v", err)
	}

	after, _ := store.GetByID("policy-spam")
	if after != before {
		t.Errorf("Policy changed despite commit failure")
	}
}

func TestStore_Toggle(t *testing.T) {
	store := NewSeededStore()

	p, err := store.Toggle("policy-violence")
	if err != nil {
		t.Fatalf("Toggle() failed: %v", err)
	}
	if p.Enabled {
		t.Error("Expected policy to be disabled")
	}

	p, _ = store.Toggle("policy-violence")
	if !p.Enabled {
		t.Error("Expected policy to be re-enabled")
	}

	if _, err := store.Toggle("policy-unknown"); !errors.Is(err, moderation.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_AddRejectsInvalid(t *testing.T) {
	store := NewSeededStore()

	if err := store.Add(Policy{Category: moderation.CategorySpam, WarnThreshold: 0.1, MuteThreshold: 0.2, FlagThreshold: 0.3}); err == nil {
		t.Error("Expected duplicate category to be rejected")
	}
	if err := store.Add(Policy{Category: moderation.CategoryNone}); err == nil {
		t.Error("Expected category none to be rejected")
	}

	empty := NewStore()
	if err := empty.Add(Policy{Category: moderation.CategorySpam, WarnThreshold: 0.9, MuteThreshold: 0.2, FlagThreshold: 0.3}); !errors.Is(err, moderation.ErrInvalidThresholdOrder) {
		t.Errorf("Expected order error, got %v", err)
	}
}

func TestStore_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	store := NewSeededStore()

	// Two valid configurations; a reader must only ever see one of them.
	a := Update{WarnThreshold: ptr(0.1), MuteThreshold: ptr(0.2), FlagThreshold: ptr(0.3)}
	b := Update{WarnThreshold: ptr(0.7), MuteThreshold: ptr(0.8), FlagThreshold: ptr(0.9)}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			u := a
			if i%2 == 1 {
				u = b
			}
			// Moving between the two sets in one step always stays ordered.
			if _, err := store.Update("policy-spam", u); err != nil {
				t.Errorf("Update() failed: %v", err)
				return
			}
		}
	}()

	for range 2000 {
		p, err := store.Get(moderation.CategorySpam)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		lowSet := p.WarnThreshold == 0.1 && p.MuteThreshold == 0.2 && p.FlagThreshold == 0.3
		highSet := p.WarnThreshold == 0.7 && p.MuteThreshold == 0.8 && p.FlagThreshold == 0.9
		seed := p.WarnThreshold == 0.6 && p.MuteThreshold == 0.8 && p.FlagThreshold == 0.9
		if !lowSet && !highSet && !seed {
			t.Fatalf("Observed torn policy: %+v", p)
		}
	}
	close(stop)
	wg.Wait()
}

func TestDiff(t *testing.T) {
	before := Policy{Name: "Spam", WarnThreshold: 0.6, MuteThreshold: 0.8, FlagThreshold: 0.9, Enabled: true}
	after := before.Apply(Update{WarnThreshold: ptr(0.5), Enabled: ptr(false)})

	changes := Diff(before, after)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %v", changes)
	}
	if c := changes["warn_threshold"]; c.Old != 0.6 || c.New != 0.5 {
		t.Errorf("Unexpected warn change: %+v", c)
	}
	if c := changes["enabled"]; c.Old != true || c.New != false {
		t.Errorf("Unexpected enabled change: %+v", c)
	}
	if len(Diff(before, before)) != 0 {
		t.Error("Expected no changes for identical policies")
	}
}
