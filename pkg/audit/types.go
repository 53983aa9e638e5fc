package audit

import (
	"context"
	"io"
	"maps"
	"time"
)

// ActionType is the closed set of auditable events.
type ActionType string

const (
	ActionDecisionCreated    ActionType = "decision_created"
	ActionActionExecuted     ActionType = "action_executed"
	ActionPolicyUpdated      ActionType = "policy_updated"
	ActionDecisionReviewed   ActionType = "decision_reviewed"
	ActionDecisionOverturned ActionType = "decision_overturned"
	ActionParticipantWarned  ActionType = "participant_warned"
	ActionParticipantMuted   ActionType = "participant_muted"
	ActionContentFlagged     ActionType = "content_flagged"
)

// ActionTypes lists every action type in declaration order.
var ActionTypes = []ActionType{
	ActionDecisionCreated,
	ActionActionExecuted,
	ActionPolicyUpdated,
	ActionDecisionReviewed,
	ActionDecisionOverturned,
	ActionParticipantWarned,
	ActionParticipantMuted,
	ActionContentFlagged,
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionDecisionCreated, ActionActionExecuted, ActionPolicyUpdated,
		ActionDecisionReviewed, ActionDecisionOverturned,
		ActionParticipantWarned, ActionParticipantMuted, ActionContentFlagged:
		return true
	}
	return false
}

// Actor identifies who caused an audited event.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorAI     Actor = "ai"
	ActorAdmin  Actor = "admin"
)

// Actors lists every actor.
var Actors = []Actor{ActorSystem, ActorAI, ActorAdmin}

// Valid reports whether a is a known actor.
func (a Actor) Valid() bool {
	switch a {
	case ActorSystem, ActorAI, ActorAdmin:
		return true
	}
	return false
}

// Entry is one immutable audit log record.
//
// ID, Sequence and Timestamp are assigned by the Log at append time. Callers
// never set them.
type Entry struct {
	ID         string         `json:"audit_id"`
	Sequence   uint64         `json:"sequence"`
	DecisionID string         `json:"decision_id,omitempty"`
	ActionType ActionType     `json:"action_type"`
	Actor      Actor          `json:"actor"`
	Reason     string         `json:"reason"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy of e with its own metadata map.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}

// Query defines filter parameters for querying audit entries.
type Query struct {
	// Time range
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	DecisionID string     `json:"decision_id,omitempty"`
	ActionType ActionType `json:"action_type,omitempty"`
	Actor      Actor      `json:"actor,omitempty"`

	// Pagination. A zero Limit means no limit at the storage layer; the Log
	// applies defaults before querying.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Stats aggregates the audit log.
type Stats struct {
	TotalEntries int64                `json:"total_entries"`
	ByActionType map[ActionType]int64 `json:"by_action_type"`
	ByActor      map[Actor]int64      `json:"by_actor"`
	OldestEntry  *time.Time           `json:"oldest_entry"`
	NewestEntry  *time.Time           `json:"newest_entry"`
}

// NewStats returns Stats with every action type and actor present at zero.
func NewStats() *Stats {
	s := &Stats{
		ByActionType: make(map[ActionType]int64, len(ActionTypes)),
		ByActor:      make(map[Actor]int64, len(Actors)),
	}
	for _, t := range ActionTypes {
		s.ByActionType[t] = 0
	}
	for _, a := range Actors {
		s.ByActor[a] = 0
	}
	return s
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use and must never modify or
// delete an entry once stored.
type Storage interface {
	// Append persists an entry whose ID, Sequence and Timestamp are already set.
	Append(ctx context.Context, entry *Entry) error

	// Get returns the entry with the given audit id.
	Get(ctx context.Context, id string) (*Entry, error)

	// Query returns entries matching the filters, newest first by timestamp
	// with ties broken by descending sequence.
	Query(ctx context.Context, query *Query) ([]*Entry, error)

	// Count returns the number of entries matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Stats aggregates every stored entry.
	Stats(ctx context.Context) (*Stats, error)

	// LastSequence returns the highest stored sequence number, or 0.
	LastSequence(ctx context.Context) (uint64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the storage backend.
	Close() error
}

// Exporter writes entries to an output format.
type Exporter interface {
	// Export writes entries to w.
	Export(ctx context.Context, entries []*Entry, w io.Writer) error

	// ContentType returns the MIME type of the output.
	ContentType() string
}

// Appender is the write side of the Log. Components that record events
// depend on it rather than on *Log.
type Appender interface {
	Append(ctx context.Context, entry Entry) (*Entry, error)
}
