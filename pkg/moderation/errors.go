package moderation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the moderation error taxonomy. Typed errors below
// match these through errors.Is.
var (
	// ErrInvalidThresholdOrder is returned when a policy update would break
	// warn <= mute <= flag. The stored policy is left unchanged.
	ErrInvalidThresholdOrder = errors.New("invalid threshold order")

	// ErrThresholdOutOfRange is returned when a threshold is outside [0,1].
	ErrThresholdOutOfRange = errors.New("threshold out of range")

	// ErrInvalidReviewState is returned when a review or overturn is not
	// permitted from the decision's current action and status.
	ErrInvalidReviewState = errors.New("invalid review state")

	// ErrMissingReason is returned when an overturn has no reason.
	ErrMissingReason = errors.New("overturn reason is required")

	// ErrExecution is returned when the action executor failed or timed out.
	ErrExecution = errors.New("action execution failed")

	// ErrStorageUnavailable is returned when backing storage cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned when a decision, policy or audit entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEvent is returned for malformed content events or classifications.
	ErrInvalidEvent = errors.New("invalid content event")
)

// ThresholdOrderError describes a rejected policy update.
type ThresholdOrderError struct {
	PolicyID string
	Warn     float64
	Mute     float64
	Flag     float64
}

// Error implements the error interface.
func (e *ThresholdOrderError) Error() string {
	return fmt.Sprintf("invalid threshold order for policy %s: warn=%.2f mute=%.2f flag=%.2f (need warn <= mute <= flag)",
		e.PolicyID, e.Warn, e.Mute, e.Flag)
}

// Is matches ErrInvalidThresholdOrder.
func (e *ThresholdOrderError) Is(target error) bool {
	return target == ErrInvalidThresholdOrder
}

// ThresholdRangeError describes a threshold outside [0,1].
type ThresholdRangeError struct {
	PolicyID string
	Field    string
	Value    float64
}

// Error implements the error interface.
func (e *ThresholdRangeError) Error() string {
	return fmt.Sprintf("policy %s: %s=%v must be within [0,1]", e.PolicyID, e.Field, e.Value)
}

// Is matches ErrThresholdOutOfRange.
func (e *ThresholdRangeError) Is(target error) bool {
	return target == ErrThresholdOutOfRange
}

// ReviewStateError describes a review or overturn rejected by the lifecycle rules.
type ReviewStateError struct {
	DecisionID string
	Op         string // "review", "overturn" or "retry"
	Action     Action
	Status     Status
}

// Error implements the error interface.
func (e *ReviewStateError) Error() string {
	return fmt.Sprintf("cannot %s decision %s (action=%s, status=%s)", e.Op, e.DecisionID, e.Action, e.Status)
}

// Is matches ErrInvalidReviewState.
func (e *ReviewStateError) Is(target error) bool {
	return target == ErrInvalidReviewState
}

// ExecutionError reports an action executor failure. The decision it refers
// to still exists with status pending.
type ExecutionError struct {
	DecisionID string
	Action     Action
	Timeout    bool
	Cause      error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("execution of %s for decision %s timed out: %v", e.Action, e.DecisionID, e.Cause)
	}
	return fmt.Sprintf("execution of %s for decision %s failed: %v", e.Action, e.DecisionID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "append", "query", "update", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "decision", "policy", "audit entry"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func invalidEvent(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, msg)
}
