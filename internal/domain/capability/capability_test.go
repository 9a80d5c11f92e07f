package capability

import (
	"testing"

	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, raw := range []string{"creator", "verifier", "reader", "admin_reader"} {
		cap, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, Capability(raw), cap)
	}

	_, err := Parse("superuser")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCreatorTransitions(t *testing.T) {
	assert.True(t, Creator.CanTransition(subscription.StatusPendingPayment, subscription.StatusCanceled))

	assert.False(t, Creator.CanTransition(subscription.StatusPendingPayment, subscription.StatusActive))
	assert.False(t, Creator.CanTransition(subscription.StatusActive, subscription.StatusCanceled))
	assert.False(t, Creator.CanTransition(subscription.StatusCanceled, subscription.StatusPendingPayment))
}

func TestVerifierTransitions(t *testing.T) {
	targets := []subscription.Status{
		subscription.StatusActive,
		subscription.StatusPaymentFailed,
		subscription.StatusPaymentOverdue,
		subscription.StatusCanceled,
		subscription.StatusExpired,
	}
	for _, to := range targets {
		assert.True(t, Verifier.CanTransition(subscription.StatusPendingPayment, to), "pending -> %s", to)
	}

	// Every non-pending status is terminal for the verifier too.
	for _, from := range targets {
		for _, to := range subscription.AllStatuses {
			assert.False(t, Verifier.CanTransition(from, to), "%s -> %s must be denied", from, to)
		}
	}
}

func TestReaderWritesNothing(t *testing.T) {
	for _, from := range subscription.AllStatuses {
		for _, to := range subscription.AllStatuses {
			assert.False(t, Reader.CanTransition(from, to))
		}
	}
	assert.Error(t, Reader.CanInsert(subscription.StatusPendingPayment, 100, false))
}

func TestAdminReaderBypassesTable(t *testing.T) {
	assert.True(t, AdminReader.CanTransition(subscription.StatusActive, subscription.StatusCanceled))
	assert.False(t, AdminReader.CanTransition(subscription.StatusActive, subscription.Status("bogus")))
	assert.NoError(t, AdminReader.CanInsert(subscription.StatusExpired, 0, false))
	assert.NoError(t, CheckColumns(AdminReader, []string{"expected_amount_minor"}))
}

func TestCanInsert(t *testing.T) {
	assert.NoError(t, Creator.CanInsert(subscription.StatusPendingPayment, 19901, false))
	assert.ErrorIs(t, Creator.CanInsert(subscription.StatusPendingPayment, 0, false), xerrors.ErrInvalidState)

	assert.NoError(t, Creator.CanInsert(subscription.StatusActive, 0, true))
	assert.ErrorIs(t, Creator.CanInsert(subscription.StatusActive, 100, true), xerrors.ErrInvalidState)
	assert.ErrorIs(t, Creator.CanInsert(subscription.StatusActive, 0, false), xerrors.ErrInvalidState)

	assert.ErrorIs(t, Creator.CanInsert(subscription.StatusExpired, 0, false), xerrors.ErrInvalidState)
	assert.ErrorIs(t, Verifier.CanInsert(subscription.StatusPendingPayment, 100, false), xerrors.ErrForbidden)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(Verifier, subscription.StatusPendingPayment, subscription.StatusActive))

	err := Authorize(Creator, subscription.StatusPendingPayment, subscription.StatusActive)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	err = Authorize(Verifier, subscription.StatusPendingPayment, subscription.Status("bogus"))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	err = Authorize(Capability("nobody"), subscription.StatusPendingPayment, subscription.StatusActive)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCheckColumns(t *testing.T) {
	assert.NoError(t, CheckColumns(Creator, []string{"status", "updated_at"}))
	assert.ErrorIs(t, CheckColumns(Creator, []string{"status", "matched_event_id"}), xerrors.ErrForbidden)

	assert.NoError(t, CheckColumns(Verifier, []string{
		"status", "updated_at", "matched_event_id", "valid_from", "valid_until",
	}))
	assert.ErrorIs(t, CheckColumns(Verifier, []string{"expected_amount_minor"}), xerrors.ErrForbidden)

	assert.ErrorIs(t, CheckColumns(Reader, []string{"status"}), xerrors.ErrForbidden)
}
