// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusPaymentFailed  Status = "payment_failed"
	StatusPaymentOverdue Status = "payment_overdue"
	StatusCanceled       Status = "canceled"
	StatusExpired        Status = "expired"
)

// AllStatuses is the full literal set, including values only present on
// historical rows. Order matters for nothing; the set does.
var AllStatuses = []Status{
	StatusPendingPayment,
	StatusActive,
	StatusPaymentFailed,
	StatusPaymentOverdue,
	StatusCanceled,
	StatusExpired,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves this status.
// Renewal creates a new row instead of reviving a terminal one.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPendingPayment
}

type Subscription struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	PlanID uuid.UUID `json:"plan_id" db:"plan_id"`

	Status              Status        `json:"status" db:"status"`
	ExpectedAmountMinor int64         `json:"expected_amount_minor" db:"expected_amount_minor"`
	MatchedEventID      uuid.NullUUID `json:"matched_event_id,omitempty" db:"matched_event_id"`

	// Validity window, stamped on activation.
	ValidFrom  time.Time    `json:"valid_from" db:"valid_from"`
	ValidUntil sql.NullTime `json:"valid_until,omitempty" db:"valid_until"`

	// One-shot notice flags for the external reminder sender.
	NotifiedOverdue bool         `json:"notified_overdue" db:"notified_overdue"`
	NotifiedExpired bool         `json:"notified_expired" db:"notified_expired"`
	RemindedAt      sql.NullTime `json:"reminded_at,omitempty" db:"reminded_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
