// Package audit provides the append-only audit log for moderation activity.
// Every state-changing event (decision created, action executed, policy
// updated, decision reviewed or overturned) is recorded as an immutable Entry.
//
// # Architecture
//
// The audit system consists of three layers:
//
//  1. Log - assigns ids, timestamps and sequence numbers and retries appends
//  2. Storage Backend - persists entries (memory, SQLite)
//  3. Exporters - render query results as JSON or CSV
//
// # Ordering
//
// The Log is the only component that assigns Entry.ID, Entry.Timestamp and
// Entry.Sequence. Sequence numbers are strictly increasing and never tie, so
// queries order newest-first by timestamp and break ties by sequence.
// Timestamps never go backwards even if the wall clock does.
//
// # Basic Usage
//
//	store := storage.NewMemoryStorage()
//	log, err := audit.NewLog(ctx, store, audit.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	entry, err := log.Append(ctx, audit.Entry{
//	    DecisionID: decision.ID,
//	    ActionType: audit.ActionDecisionCreated,
//	    Actor:      audit.ActorAI,
//	    Reason:     "Moderation decision created: spam with confidence 0.91",
//	})
//
// # Failure Semantics
//
// Append retries transient storage failures with exponential backoff. When
// retries are exhausted the error matches moderation.ErrStorageUnavailable
// and the entry is not stored. Append never reports success for an entry that
// was not persisted.
//
// A failed append consumes its sequence number, so sequences may have gaps.
// They never repeat.
package audit
