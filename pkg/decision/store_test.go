package decision

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/storage/sqlite"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := sqlite.DefaultConfig()
	cfg.Driver = sqlite.DriverPure
	cfg.Path = filepath.Join(t.TempDir(), "decisions.db")
	cfg.MaxOpenConns = 1

	s, err := NewSQLiteStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(id string, offset time.Duration) *moderation.Decision {
	return &moderation.Decision{
		ID:                  id,
		RoomID:              "room-1",
		ParticipantID:       "user-1",
		ParticipantIdentity: "alice",
		Content:             "buy now",
		ContentType:         moderation.ContentTypeText,
		Classification:      moderation.CategorySpam,
		Confidence:          0.85,
		Action:              moderation.ActionMute,
		Status:              moderation.StatusPending,
		PolicyID:            "policy-spam",
		Timestamp:           base.Add(offset),
		UpdatedAt:           base.Add(offset),
		Metadata:            map[string]any{"source": "chat"},
	}
}

func TestStore_CreateGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := sample("dec-1", 0)
			require.NoError(t, s.Create(ctx, d))
			assert.Error(t, s.Create(ctx, d), "duplicate id must be rejected")

			got, err := s.Get(ctx, "dec-1")
			require.NoError(t, err)
			assert.Equal(t, d.RoomID, got.RoomID)
			assert.Equal(t, d.Action, got.Action)
			assert.Equal(t, d.Confidence, got.Confidence)
			assert.True(t, d.Timestamp.Equal(got.Timestamp))
			assert.Equal(t, "chat", got.Metadata["source"])
			assert.Empty(t, got.EventID)

			_, err = s.Get(ctx, "dec-missing")
			assert.ErrorIs(t, err, moderation.ErrNotFound)
		})
	}
}

func TestStore_UpdateIsConditional(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sample("dec-1", 0)))

			d, err := s.Get(ctx, "dec-1")
			require.NoError(t, err)
			d.Status = moderation.StatusOverturned
			d.Overturn = &moderation.Overturn{Reason: "false positive", OverturnedAt: base.Add(time.Minute)}
			d.UpdatedAt = base.Add(time.Minute)
			// Outcome fields are ignored by Update.
			d.Action = moderation.ActionWarn
			require.NoError(t, s.Update(ctx, d, moderation.StatusPending))

			got, err := s.Get(ctx, "dec-1")
			require.NoError(t, err)
			assert.Equal(t, moderation.StatusOverturned, got.Status)
			assert.Equal(t, moderation.ActionMute, got.Action)
			require.NotNil(t, got.Overturn)
			assert.Equal(t, "false positive", got.Overturn.Reason)

			stale := got.Clone()
			stale.Status = moderation.StatusExecuted
			err = s.Update(ctx, stale, moderation.StatusPending)
			assert.ErrorIs(t, err, ErrConflict)

			got, _ = s.Get(ctx, "dec-1")
			assert.Equal(t, moderation.StatusOverturned, got.Status)

			missing := sample("dec-missing", 0)
			assert.ErrorIs(t, s.Update(ctx, missing, moderation.StatusPending), moderation.ErrNotFound)
		})
	}
}

func TestStore_Remove(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, sample("dec-1", 0)))
			require.NoError(t, s.Remove(ctx, "dec-1"))

			_, err := s.Get(ctx, "dec-1")
			assert.ErrorIs(t, err, moderation.ErrNotFound)
			assert.ErrorIs(t, s.Remove(ctx, "dec-1"), moderation.ErrNotFound)
		})
	}
}

func TestStore_QueryFiltersAndOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// dec-0 and dec-1 share a timestamp; insertion order breaks the tie.
			offsets := []time.Duration{0, 0, time.Minute, 2 * time.Minute, 3 * time.Minute}
			for i, off := range offsets {
				d := sample(fmt.Sprintf("dec-%d", i), off)
				if i%2 == 1 {
					d.RoomID = "room-2"
					d.Classification = moderation.CategoryHarassment
					d.Confidence = 0.4
					d.Action = moderation.ActionWarn
				}
				require.NoError(t, s.Create(ctx, d))
			}

			all, err := s.Query(ctx, &Query{})
			require.NoError(t, err)
			assert.Equal(t, []string{"dec-4", "dec-3", "dec-2", "dec-1", "dec-0"}, ids(all))

			oldest, err := s.Query(ctx, &Query{OldestFirst: true, Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"dec-0", "dec-1"}, ids(oldest))

			room2, err := s.Query(ctx, &Query{RoomID: "room-2"})
			require.NoError(t, err)
			assert.Equal(t, []string{"dec-3", "dec-1"}, ids(room2))

			minConf := 0.5
			high, err := s.Query(ctx, &Query{MinConfidence: &minConf, Action: moderation.ActionMute})
			require.NoError(t, err)
			assert.Len(t, high, 3)

			start, end := base.Add(time.Minute), base.Add(2*time.Minute)
			ranged, err := s.Query(ctx, &Query{StartTime: &start, EndTime: &end})
			require.NoError(t, err)
			assert.Equal(t, []string{"dec-3", "dec-2"}, ids(ranged))

			page, err := s.Query(ctx, &Query{Limit: 2, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"dec-3", "dec-2"}, ids(page))

			n, err := s.Count(ctx, &Query{Classification: moderation.CategoryHarassment, Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			again, err := s.Query(ctx, &Query{})
			require.NoError(t, err)
			assert.Equal(t, ids(all), ids(again), "identical queries must return identical order")
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, empty.TotalDecisions)
			assert.Zero(t, empty.AverageConfidence)
			assert.Len(t, empty.ByAction, len(moderation.Actions))
			assert.Len(t, empty.ByClassification, len(moderation.Categories))
			assert.Len(t, empty.ByStatus, len(moderation.Statuses))

			a := sample("dec-a", 0)
			a.Confidence = 0.9
			b := sample("dec-b", time.Second)
			b.Confidence = 0.6
			b.Action = moderation.ActionWarn
			b.Status = moderation.StatusExecuted
			c := sample("dec-c", 2*time.Second)
			c.Classification = moderation.CategoryNone
			c.Confidence = 0
			c.Action = moderation.ActionNone
			c.Status = moderation.StatusExecuted
			for _, d := range []*moderation.Decision{a, b, c} {
				require.NoError(t, s.Create(ctx, d))
			}

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), stats.TotalDecisions)
			assert.Equal(t, int64(1), stats.ByAction[moderation.ActionMute])
			assert.Equal(t, int64(1), stats.ByAction[moderation.ActionWarn])
			assert.Equal(t, int64(0), stats.ByAction[moderation.ActionFlagForReview])
			assert.Equal(t, int64(2), stats.ByStatus[moderation.StatusExecuted])
			assert.Equal(t, int64(1), stats.ByClassification[moderation.CategoryNone])
			// Zero confidences are excluded from the average.
			assert.InDelta(t, 0.75, stats.AverageConfidence, 1e-9)
		})
	}
}

func TestSQLiteStore_OutcomeIsImmutable(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sample("dec-1", 0)))

	_, err := s.db.ExecContext(ctx, "UPDATE decisions SET action = 'warn' WHERE decision_id = 'dec-1'")
	assert.Error(t, err)

	_, err = s.db.ExecContext(ctx, "UPDATE decisions SET status = 'executed' WHERE decision_id = 'dec-1'")
	assert.NoError(t, err)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	cfg := sqlite.DefaultConfig()
	cfg.Driver = sqlite.DriverPure
	cfg.Path = filepath.Join(t.TempDir(), "decisions.db")

	s, err := NewSQLiteStore(cfg)
	require.NoError(t, err)
	d := sample("dec-1", 0)
	d.Review = &moderation.Review{Approved: true, Notes: "ok", ReviewedAt: base}
	d.Status = moderation.StatusReviewed
	require.NoError(t, s.Create(context.Background(), d))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "dec-1")
	require.NoError(t, err)
	require.NotNil(t, got.Review)
	assert.True(t, got.Review.Approved)
	assert.Equal(t, "ok", got.Review.Notes)
}

func ids(ds []*moderation.Decision) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}
