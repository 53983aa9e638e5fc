// Package decision is the mutable index of moderation decisions.
//
// A Store persists decisions and serves the list, get and stats queries.
// Only Status, Review, Overturn and UpdatedAt change after creation, and
// Update is conditional on the status the caller last read, so a stale
// writer gets ErrConflict instead of overwriting a newer transition.
//
// The audit log, not this index, is the record of history. Remove exists
// only so the engine can undo a creation whose audit entry failed.
//
// Locker provides the per-decision exclusive section that the engine and
// review service hold while they change a decision and append its audit
// entry.
package decision
