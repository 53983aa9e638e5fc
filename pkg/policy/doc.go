// Package policy holds the per-category threshold configuration used by the
// decision engine.
//
// A Store keeps one Policy per category with its own read/write lock.
// Readers take snapshots, so one evaluation always sees a single consistent
// set of warn, mute and flag thresholds. Updates are validated against the
// merged result (warn <= mute <= flag, each within [0,1]) and rejected
// without changing the stored policy.
//
// The Service wraps the Store with auditing: every change appends a
// policy_updated entry while the policy is write-locked, and the change is
// only made visible if that append succeeds.
//
// A YAML policy file can declare threshold overrides. The Watcher reloads it
// on change using fsnotify, applying edits as the system actor.
package policy
