package query

import (
	"fmt"

	"mercator-hq/warden/pkg/audit"
)

const (
	// DefaultLimit is the default number of entries to return if not specified.
	DefaultLimit = 100

	// MaxLimit is the maximum number of entries that can be returned in a single query.
	MaxLimit = 10000
)

// Validate validates a query and returns an error if any parameters are invalid.
func Validate(q *audit.Query) error {
	if q.Limit < 0 {
		return audit.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return audit.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}

	if q.Offset < 0 {
		return audit.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	if q.ActionType != "" && !q.ActionType.Valid() {
		return audit.NewQueryError(q, fmt.Errorf("invalid action_type: %s", q.ActionType))
	}

	if q.Actor != "" && !q.Actor.Valid() {
		return audit.NewQueryError(q, fmt.Errorf("invalid actor: %s (must be 'system', 'ai', or 'admin')", q.Actor))
	}

	if q.StartTime != nil && q.EndTime != nil {
		if q.StartTime.After(*q.EndTime) {
			return audit.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
		}
	}

	return nil
}

// ApplyDefaults applies default values to a query.
func ApplyDefaults(q *audit.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
}
