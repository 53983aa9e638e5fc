package decision

import (
	"context"
	"errors"
	"math"
	"time"

	"mercator-hq/warden/pkg/moderation"
)

// ErrConflict is returned by Store.Update when the stored status no longer
// matches the status the caller read.
var ErrConflict = errors.New("decision status changed concurrently")

// DefaultLimit is the page size used when a query sets no limit.
const DefaultLimit = 50

// Query filters decisions. Zero values match everything.
type Query struct {
	RoomID         string              `json:"room_id,omitempty"`
	ParticipantID  string              `json:"participant_id,omitempty"`
	Classification moderation.Category `json:"classification,omitempty"`
	Action         moderation.Action   `json:"action,omitempty"`
	Status         moderation.Status   `json:"status,omitempty"`

	MinConfidence *float64 `json:"min_confidence,omitempty"` // Inclusive
	MaxConfidence *float64 `json:"max_confidence,omitempty"` // Inclusive

	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive

	// OldestFirst reverses the default newest-first order.
	OldestFirst bool `json:"-"`

	// A zero Limit means no limit at the storage layer.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether d satisfies every filter in q.
func (q *Query) Matches(d *moderation.Decision) bool {
	if q.RoomID != "" && d.RoomID != q.RoomID {
		return false
	}
	if q.ParticipantID != "" && d.ParticipantID != q.ParticipantID {
		return false
	}
	if q.Classification != "" && d.Classification != q.Classification {
		return false
	}
	if q.Action != "" && d.Action != q.Action {
		return false
	}
	if q.Status != "" && d.Status != q.Status {
		return false
	}
	if q.MinConfidence != nil && d.Confidence < *q.MinConfidence {
		return false
	}
	if q.MaxConfidence != nil && d.Confidence > *q.MaxConfidence {
		return false
	}
	if q.StartTime != nil && d.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && d.Timestamp.After(*q.EndTime) {
		return false
	}
	return true
}

// Stats aggregates stored decisions.
type Stats struct {
	TotalDecisions    int64                         `json:"total_decisions"`
	ByAction          map[moderation.Action]int64   `json:"by_action"`
	ByClassification  map[moderation.Category]int64 `json:"by_classification"`
	ByStatus          map[moderation.Status]int64   `json:"by_status"`
	AverageConfidence float64                       `json:"average_confidence"`
}

// NewStats returns Stats with every enum value present at zero.
func NewStats() *Stats {
	s := &Stats{
		ByAction:         make(map[moderation.Action]int64, len(moderation.Actions)),
		ByClassification: make(map[moderation.Category]int64, len(moderation.Categories)),
		ByStatus:         make(map[moderation.Status]int64, len(moderation.Statuses)),
	}
	for _, a := range moderation.Actions {
		s.ByAction[a] = 0
	}
	for _, c := range moderation.Categories {
		s.ByClassification[c] = 0
	}
	for _, st := range moderation.Statuses {
		s.ByStatus[st] = 0
	}
	return s
}

// averageConfidence is the mean of the positive confidences rounded to three
// decimals, or zero when there are none.
func averageConfidence(sum float64, n int64) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*1000) / 1000
}

// Store is the mutable decision index. Implementations must be safe for
// concurrent use. Callers serialize mutations of one decision with a Locker.
type Store interface {
	// Create stores a new decision. It fails if the id already exists.
	Create(ctx context.Context, d *moderation.Decision) error

	// Get returns a copy of the decision with the given id.
	Get(ctx context.Context, id string) (*moderation.Decision, error)

	// Update writes the mutable fields of d (Status, Review, Overturn,
	// UpdatedAt) if the stored status still equals from. Otherwise it
	// returns ErrConflict and changes nothing.
	Update(ctx context.Context, d *moderation.Decision, from moderation.Status) error

	// Remove deletes a decision. It exists only to roll back a creation
	// whose audit entry could not be written.
	Remove(ctx context.Context, id string) error

	// Query returns decisions matching q, newest first unless q.OldestFirst.
	Query(ctx context.Context, q *Query) ([]*moderation.Decision, error)

	// Count returns the number of decisions matching q, ignoring pagination.
	Count(ctx context.Context, q *Query) (int64, error)

	// Stats aggregates every stored decision.
	Stats(ctx context.Context) (*Stats, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
