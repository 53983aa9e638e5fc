// Package moderation defines the shared vocabulary of the moderation core:
// the closed enums for categories, actions, statuses and content types, the
// inbound ContentEvent and Classification, the Decision record with its
// status state machine, and the error taxonomy every component reports with.
//
// # Decision lifecycle
//
//	pending  -> executed | reviewed | overturned
//	executed -> reviewed | overturned
//	reviewed -> overturned
//
// overturned is terminal. Every transition is validated with
// Status.CanTransitionTo before a component commits it.
//
// # Errors
//
// Components return typed errors (ThresholdOrderError, ReviewStateError,
// ExecutionError, StorageError) that match the package sentinels through
// errors.Is, so callers can branch on the taxonomy without depending on the
// concrete type:
//
//	if errors.Is(err, moderation.ErrInvalidReviewState) {
//		// decision was not eligible, nothing changed
//	}
package moderation
