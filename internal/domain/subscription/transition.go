// internal/domain/subscription/transition.go
package subscription

import "github.com/google/uuid"

// TransitionParams carries one state-machine edge plus the column writes
// that edge is allowed to perform.
type TransitionParams struct {
	From Status
	To   Status

	// Set on the activate edge only.
	MatchedEventID uuid.NullUUID
	StampValidity  bool // derive valid_from/valid_until from the plan

	// One-shot notice bookkeeping.
	OweOverdueNotice bool
	OweExpiredNotice bool
}

// Columns lists the subscription columns this transition writes, for the
// capability write-scope check.
func (p TransitionParams) Columns() []string {
	cols := []string{"status", "updated_at"}
	if p.MatchedEventID.Valid {
		cols = append(cols, "matched_event_id")
	}
	if p.StampValidity {
		cols = append(cols, "valid_from", "valid_until")
	}
	if p.OweOverdueNotice {
		cols = append(cols, "notified_overdue")
	}
	if p.OweExpiredNotice {
		cols = append(cols, "notified_expired")
	}
	return cols
}
