package moderation

import (
	"fmt"
	"maps"
	"time"
)

// Category is a content policy category reported by the classifier.
type Category string

const (
	CategoryHarassment   Category = "harassment"
	CategoryHateSpeech   Category = "hate_speech"
	CategorySpam         Category = "spam"
	CategoryViolence     Category = "violence"
	CategoryAdultContent Category = "adult_content"
	CategoryNone         Category = "none"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryHarassment,
	CategoryHateSpeech,
	CategorySpam,
	CategoryViolence,
	CategoryAdultContent,
	CategoryNone,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHarassment, CategoryHateSpeech, CategorySpam,
		CategoryViolence, CategoryAdultContent, CategoryNone:
		return true
	}
	return false
}

// Action is the moderation action resulting from a threshold comparison.
type Action string

const (
	ActionNone          Action = "none"
	ActionWarn          Action = "warn"
	ActionMute          Action = "mute"
	ActionFlagForReview Action = "flag_for_review"
)

// Actions lists every action from least to most severe.
var Actions = []Action{ActionNone, ActionWarn, ActionMute, ActionFlagForReview}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionWarn, ActionMute, ActionFlagForReview:
		return true
	}
	return false
}

// Severity orders actions: none < warn < mute < flag_for_review.
func (a Action) Severity() int {
	switch a {
	case ActionNone:
		return 0
	case ActionWarn:
		return 1
	case ActionMute:
		return 2
	case ActionFlagForReview:
		return 3
	}
	panic(fmt.Sprintf("moderation: unknown action %q", string(a)))
}

// AutoExecutes reports whether a successful executor call moves a decision
// with this action to executed. Flagged content waits for a human.
func (a Action) AutoExecutes() bool {
	switch a {
	case ActionWarn, ActionMute:
		return true
	case ActionNone, ActionFlagForReview:
		return false
	}
	panic(fmt.Sprintf("moderation: unknown action %q", string(a)))
}

// Status is the lifecycle state of a Decision.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExecuted   Status = "executed"
	StatusReviewed   Status = "reviewed"
	StatusOverturned Status = "overturned"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusExecuted, StatusReviewed, StatusOverturned}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusReviewed, StatusOverturned:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle graph has an edge s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusExecuted || next == StatusReviewed || next == StatusOverturned
	case StatusExecuted:
		return next == StatusReviewed || next == StatusOverturned
	case StatusReviewed:
		return next == StatusOverturned
	case StatusOverturned:
		return false
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusOverturned
}

// ContentType describes the medium the moderated content came from.
type ContentType string

const (
	ContentTypeText            ContentType = "text"
	ContentTypeAudioTranscript ContentType = "audio_transcript"
	ContentTypeVideoFrame      ContentType = "video_frame"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeAudioTranscript, ContentTypeVideoFrame:
		return true
	}
	return false
}

// ContentEvent is one piece of participant content delivered by the upstream
// classification collaborator.
type ContentEvent struct {
	// EventID is the upstream delivery id. When set, redeliveries of the
	// same event resolve to the decision created the first time.
	EventID string `json:"event_id,omitempty"`

	RoomID              string         `json:"room_id"`
	ParticipantID       string         `json:"participant_id"`
	ParticipantIdentity string         `json:"participant_identity"`
	Content             string         `json:"content"`
	ContentType         ContentType    `json:"content_type,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// Validate checks the required fields and normalizes the content type.
func (e *ContentEvent) Validate() error {
	if e.RoomID == "" {
		return invalidEvent("room_id is required")
	}
	if e.ParticipantID == "" {
		return invalidEvent("participant_id is required")
	}
	if e.ContentType == "" {
		e.ContentType = ContentTypeText
	}
	if !e.ContentType.Valid() {
		return invalidEvent(fmt.Sprintf("unknown content_type %q", e.ContentType))
	}
	return nil
}

// Classification is the output of the external classify-and-score model.
type Classification struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// Validate checks the category and the confidence range.
func (c Classification) Validate() error {
	if !c.Category.Valid() {
		return invalidEvent(fmt.Sprintf("unknown category %q", c.Category))
	}
	// NaN fails both comparisons.
	if !(c.Confidence >= 0 && c.Confidence <= 1) {
		return invalidEvent(fmt.Sprintf("confidence %v outside [0,1]", c.Confidence))
	}
	return nil
}

// Review records a human reviewer's disposition of a flagged decision.
type Review struct {
	Approved   bool      `json:"approved"`
	Notes      string    `json:"notes,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Overturn records the reversal of a decision.
type Overturn struct {
	Reason       string    `json:"reason"`
	OverturnedAt time.Time `json:"overturned_at"`
}

// Decision is the recorded outcome of evaluating one content event.
//
// Classification, Confidence and Action are fixed at creation. After that
// only Status, Review, Overturn and UpdatedAt change.
type Decision struct {
	ID                  string         `json:"decision_id"`
	RoomID              string         `json:"room_id"`
	ParticipantID       string         `json:"participant_id"`
	ParticipantIdentity string         `json:"participant_identity"`
	Content             string         `json:"content"`
	ContentType         ContentType    `json:"content_type"`
	Classification      Category       `json:"classification"`
	Confidence          float64        `json:"confidence_score"`
	Action              Action         `json:"action"`
	Status              Status         `json:"status"`
	PolicyID            string         `json:"policy_id,omitempty"`
	Timestamp           time.Time      `json:"timestamp"`
	Reasoning           string         `json:"reasoning,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	EventID             string         `json:"event_id,omitempty"`

	Review    *Review   `json:"review,omitempty"`
	Overturn  *Overturn `json:"overturn,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with d.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	c := *d
	c.Metadata = maps.Clone(d.Metadata)
	if d.Review != nil {
		r := *d.Review
		c.Review = &r
	}
	if d.Overturn != nil {
		o := *d.Overturn
		c.Overturn = &o
	}
	return &c
}
