package logging

import (
	"context"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	decisionIDKey contextKey = "decision_id"
	roomIDKey     contextKey = "room_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithDecisionID adds a decision ID to the context.
func WithDecisionID(ctx context.Context, decisionID string) context.Context {
	return context.WithValue(ctx, decisionIDKey, decisionID)
}

// DecisionID retrieves the decision ID from the context.
func DecisionID(ctx context.Context) string {
	id, _ := ctx.Value(decisionIDKey).(string)
	return id
}

// WithRoomID adds a room ID to the context.
func WithRoomID(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, roomIDKey, roomID)
}

// RoomID retrieves the room ID from the context.
func RoomID(ctx context.Context) string {
	id, _ := ctx.Value(roomIDKey).(string)
	return id
}
