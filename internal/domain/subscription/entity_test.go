package subscription

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("paused").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPendingPayment.Terminal())
	for _, s := range []Status{
		StatusActive, StatusPaymentFailed, StatusPaymentOverdue, StatusCanceled, StatusExpired,
	} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, Status("paused").Terminal())
}

func TestTransitionParamsColumns(t *testing.T) {
	base := TransitionParams{From: StatusPendingPayment, To: StatusCanceled}
	assert.ElementsMatch(t, []string{"status", "updated_at"}, base.Columns())

	activate := TransitionParams{
		From:           StatusPendingPayment,
		To:             StatusActive,
		MatchedEventID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		StampValidity:  true,
	}
	assert.ElementsMatch(t, []string{
		"status", "updated_at", "matched_event_id", "valid_from", "valid_until",
	}, activate.Columns())

	overdue := TransitionParams{
		From:             StatusPendingPayment,
		To:               StatusPaymentOverdue,
		OweOverdueNotice: true,
	}
	assert.Contains(t, overdue.Columns(), "notified_overdue")

	expired := TransitionParams{
		From:             StatusPendingPayment,
		To:               StatusExpired,
		OweExpiredNotice: true,
	}
	assert.Contains(t, expired.Columns(), "notified_expired")
}
