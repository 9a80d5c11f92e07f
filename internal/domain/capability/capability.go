// internal/domain/capability/capability.go
package capability

import (
	"fmt"

	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"
)

// Capability is a fixed bundle of permitted subscription operations bound
// to an authenticated service identity. A caller acts as exactly one.
type Capability string

const (
	// Creator inserts pending (or free/trial active) subscriptions and may
	// cancel its own still-pending rows. The bot front-end runs as Creator.
	Creator Capability = "creator"

	// Verifier moves pending subscriptions along the payment edges. The
	// payment-verification worker runs as Verifier.
	Verifier Capability = "verifier"

	// Reader observes; it writes nothing.
	Reader Capability = "reader"

	// AdminReader is the audited reconciliation exception: broad read plus
	// unrestricted writes. Never granted by default configuration.
	AdminReader Capability = "admin_reader"
)

func Parse(s string) (Capability, error) {
	switch Capability(s) {
	case Creator, Verifier, Reader, AdminReader:
		return Capability(s), nil
	}
	return "", fmt.Errorf("%w: unknown capability %q", xerrors.ErrInvalidInput, s)
}

// transitions is the static permitted-edge table, keyed by capability and
// current status. Loaded once at init, immutable at request time.
var transitions = map[Capability]map[subscription.Status][]subscription.Status{
	Creator: {
		subscription.StatusPendingPayment: {
			subscription.StatusCanceled,
		},
	},
	Verifier: {
		subscription.StatusPendingPayment: {
			subscription.StatusActive,
			subscription.StatusPaymentFailed,
			subscription.StatusPaymentOverdue,
			subscription.StatusCanceled,
			subscription.StatusExpired,
		},
	},
	Reader: {},
}

// writeScopes lists the columns a capability may change on update. A write
// touching anything else must fail atomically with Forbidden.
var writeScopes = map[Capability]map[string]bool{
	Creator: {
		"status":     true,
		"updated_at": true,
	},
	Verifier: {
		"status":           true,
		"updated_at":       true,
		"matched_event_id": true,
		"valid_from":       true,
		"valid_until":      true,
		"notified_overdue": true,
		"notified_expired": true,
		"reminded_at":      true,
	},
	Reader: {},
}

// CanInsert reports whether the capability may insert a subscription row in
// the given initial status with the given expected amount.
func (c Capability) CanInsert(status subscription.Status, amountMinor int64, freePlan bool) error {
	if c == AdminReader {
		return nil
	}
	if c != Creator {
		return fmt.Errorf("%w: capability %q may not insert subscriptions", xerrors.ErrForbidden, c)
	}
	switch status {
	case subscription.StatusPendingPayment:
		if amountMinor <= 0 {
			return fmt.Errorf("%w: pending subscription requires a positive amount", xerrors.ErrInvalidState)
		}
		return nil
	case subscription.StatusActive:
		if amountMinor != 0 {
			return fmt.Errorf("%w: direct activation requires a zero amount", xerrors.ErrInvalidState)
		}
		if !freePlan {
			return fmt.Errorf("%w: direct activation is limited to free/trial plans", xerrors.ErrInvalidState)
		}
		return nil
	default:
		return fmt.Errorf("%w: subscriptions may not be inserted as %q", xerrors.ErrInvalidState, status)
	}
}

// CanTransition reports whether the capability may move a row from the
// current status to the next one.
func (c Capability) CanTransition(from, to subscription.Status) bool {
	if c == AdminReader {
		return from.Valid() && to.Valid()
	}
	for _, allowed := range transitions[c][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Authorize is the update guard: capability known, edge permitted.
func Authorize(c Capability, from, to subscription.Status) error {
	if _, err := Parse(string(c)); err != nil {
		return err
	}
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", xerrors.ErrInvalidInput, to)
	}
	if !c.CanTransition(from, to) {
		return fmt.Errorf("%w: capability %q may not move %q to %q", xerrors.ErrForbidden, c, from, to)
	}
	return nil
}

// CheckColumns verifies that every changed column is inside the
// capability's declared write scope.
func CheckColumns(c Capability, changed []string) error {
	if c == AdminReader {
		return nil
	}
	scope := writeScopes[c]
	for _, col := range changed {
		if !scope[col] {
			return fmt.Errorf("%w: capability %q may not write column %q", xerrors.ErrForbidden, c, col)
		}
	}
	return nil
}

// CanRead reports whether the capability may read subscription rows.
// Every capability can: Creator and Verifier need fresh reads to resolve
// conflicts, Reader exists for exactly this.
func (c Capability) CanRead() bool {
	_, err := Parse(string(c))
	return err == nil
}
