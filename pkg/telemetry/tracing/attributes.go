package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/warden/pkg/moderation"
)

// Attribute keys use the "warden.*" namespace.
const (
	AttrDecisionID     = "warden.decision.id"
	AttrDecisionStatus = "warden.decision.status"
	AttrAction         = "warden.decision.action"
	AttrCategory       = "warden.classification.category"
	AttrConfidence     = "warden.classification.confidence"

	AttrRoomID        = "warden.room.id"
	AttrParticipantID = "warden.participant.id"
	AttrEventID       = "warden.event.id"

	AttrPolicyID      = "warden.policy.id"
	AttrPolicyEnabled = "warden.policy.enabled"

	AttrReviewOp     = "warden.review.operation"
	AttrDedupHit     = "warden.dedup.hit"
	AttrExecTimeout  = "warden.execution.timeout"
	AttrErrorMessage = "error.message"
)

// SetEventAttributes records the content event being evaluated. The content
// itself is never attached to spans.
func SetEventAttributes(span trace.Span, event moderation.ContentEvent, cls moderation.Classification) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRoomID, event.RoomID),
		attribute.String(AttrParticipantID, event.ParticipantID),
		attribute.String(AttrCategory, string(cls.Category)),
		attribute.Float64(AttrConfidence, cls.Confidence),
	}
	if event.EventID != "" {
		attrs = append(attrs, attribute.String(AttrEventID, event.EventID))
	}
	span.SetAttributes(attrs...)
}

// SetDecisionAttributes records a decision's id, action and status.
func SetDecisionAttributes(span trace.Span, d *moderation.Decision) {
	if d == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrDecisionID, d.ID),
		attribute.String(AttrAction, string(d.Action)),
		attribute.String(AttrDecisionStatus, string(d.Status)),
	}
	if d.PolicyID != "" {
		attrs = append(attrs, attribute.String(AttrPolicyID, d.PolicyID))
	}
	span.SetAttributes(attrs...)
}

// SetPolicyAttributes records the policy snapshot used for an evaluation.
func SetPolicyAttributes(span trace.Span, policyID string, enabled bool) {
	span.SetAttributes(
		attribute.String(AttrPolicyID, policyID),
		attribute.Bool(AttrPolicyEnabled, enabled),
	)
}
