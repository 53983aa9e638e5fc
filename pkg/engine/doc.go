// Package engine implements the moderation decision engine.
//
// Evaluate turns a classified content event into a Decision:
//
//  1. Snapshot the enabled policy for the event's category.
//  2. Compare the confidence against its thresholds, highest tier first.
//  3. Persist the decision as pending and append decision_created, under
//     the decision's lock.
//  4. Release the lock and invoke the Executor for non-none actions.
//  5. Re-acquire the lock to move warn and mute decisions to executed and
//     append action_executed.
//
// Step 3 always completes before step 4 starts, so every side effect has a
// recorded decision behind it. A failed or timed-out executor call leaves
// the decision pending; Retry and the cron-driven Sweeper pick it up later.
//
// Flagged decisions are handed to the executor (which queues them for a
// human) but stay pending until the review service resolves them.
package engine
