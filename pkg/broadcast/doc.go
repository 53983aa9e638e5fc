// Package broadcast publishes decision and audit state changes to live
// observers.
//
// Each subscriber owns a bounded queue. Publish never blocks on a slow
// subscriber: when a queue is full its oldest event is dropped and the
// subscriber's next read returns an EventResync carrying the drop count,
// so observers know to reload state instead of silently drifting.
//
// Events are numbered by a single broadcaster-wide sequence. Every subscriber
// receives events in sequence order, which preserves the per-decision order
// in which the engine and review service publish (create, execute,
// review or overturn).
package broadcast
