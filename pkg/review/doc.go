// Package review implements human review and overturn of moderation
// decisions.
//
//	pending|executed  --Review-->   reviewed     (flag_for_review only)
//	any but overturned --Overturn--> overturned  (reason required)
//
// Both operations append exactly one audit entry (decision_reviewed or
// decision_overturned, actor admin) and publish the new decision state.
// Nothing leaves overturned.
package review
