// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/domain/plan"
	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionStore is the persistence surface the service drives. The
// postgres repository implements it; tests substitute fakes.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *subscription.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
	FindPendingByAmount(ctx context.Context, amountMinor int64) (*subscription.Subscription, error)
	PendingAmountsBetween(ctx context.Context, low, high int64) ([]int64, error)
	List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Subscription, int64, error)
	Transition(ctx context.Context, id uuid.UUID, p subscription.TransitionParams) (*subscription.Subscription, error)
	HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error)
}

type PlanStore interface {
	FindByCode(ctx context.Context, code string) (*plan.Plan, error)
}

// SubscriptionService is the only write path to subscription rows. Every
// write is evaluated against the acting capability before it reaches
// storage; storage constraints back the same invariants so a buggy caller
// cannot corrupt state either way.
type SubscriptionService struct {
	subs   SubscriptionStore
	plans  PlanStore
	logger *zap.Logger
}

func NewSubscriptionService(subs SubscriptionStore, plans PlanStore, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		subs:   subs,
		plans:  plans,
		logger: logger,
	}
}

// FindFreeAmount picks a perturbed amount near the plan's base price that
// no pending subscription currently reserves. The perturbation is what
// lets the matcher identify a payment by amount alone.
func (s *SubscriptionService) FindFreeAmount(ctx context.Context, baseMinor int64) (int64, error) {
	for _, base := range []int64{baseMinor, baseMinor + 100} {
		used, err := s.subs.PendingAmountsBetween(ctx, base+1, base+99)
		if err != nil {
			return 0, xerrors.Wrap(err, "failed to load reserved amounts")
		}
		usedSet := make(map[int64]bool, len(used))
		for _, amount := range used {
			usedSet[amount] = true
		}
		for cents := int64(1); cents < 100; cents++ {
			if candidate := base + cents; !usedSet[candidate] {
				return candidate, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no free payment amount near %d", xerrors.ErrConflict, baseMinor)
}

// CreatePending inserts a subscription awaiting payment. The pending
// amount is the payment fingerprint; a uniqueness collision surfaces as
// Conflict and is retried once with a regenerated amount.
func (s *SubscriptionService) CreatePending(ctx context.Context, cap capability.Capability, userID uuid.UUID, planCode string) (*subscription.Subscription, error) {
	p, err := s.plans.FindByCode(ctx, planCode)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", planCode, err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: plan %q is not offered", xerrors.ErrInvalidState, planCode)
	}

	for attempt := 0; attempt < 2; attempt++ {
		amount, err := s.FindFreeAmount(ctx, p.BaseAmountMinor())
		if err != nil {
			return nil, err
		}
		if err := cap.CanInsert(subscription.StatusPendingPayment, amount, p.IsFree()); err != nil {
			return nil, err
		}

		sub := &subscription.Subscription{
			UserID:              userID,
			PlanID:              p.ID,
			Status:              subscription.StatusPendingPayment,
			ExpectedAmountMinor: amount,
		}
		err = s.subs.Create(ctx, sub)
		if err == nil {
			s.logger.Info("pending subscription created",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("user_id", userID.String()),
				zap.Int64("amount_minor", amount))
			return sub, nil
		}
		if !xerrors.Is(err, xerrors.ErrConflict) {
			return nil, err
		}
		// Amount raced with another creator; regenerate and retry once.
		s.logger.Warn("pending amount collision, regenerating",
			zap.Int64("amount_minor", amount))
	}
	return nil, fmt.Errorf("%w: pending amount keeps colliding", xerrors.ErrConflict)
}

// CreateFreeActive inserts a directly active subscription for zero-cost
// plans; the free/trial lifecycle bypasses the ledger entirely.
func (s *SubscriptionService) CreateFreeActive(ctx context.Context, cap capability.Capability, userID uuid.UUID, planCode string) (*subscription.Subscription, error) {
	p, err := s.plans.FindByCode(ctx, planCode)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", planCode, err)
	}
	if err := cap.CanInsert(subscription.StatusActive, 0, p.IsFree()); err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		UserID:              userID,
		PlanID:              p.ID,
		Status:              subscription.StatusActive,
		ExpectedAmountMinor: 0,
	}
	if p.DurationDays.Valid {
		sub.ValidUntil = sql.NullTime{
			Time:  time.Now().AddDate(0, 0, int(p.DurationDays.Int32)),
			Valid: true,
		}
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("free subscription activated",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("plan", planCode))
	return sub, nil
}

// Transition applies one edge of the state machine on behalf of the
// acting capability. The edge guard, the column-scope guard and the
// optimistic current-status precondition all hold or the write fails
// atomically.
func (s *SubscriptionService) Transition(ctx context.Context, cap capability.Capability, id uuid.UUID, newStatus subscription.Status, matchedEventID *uuid.UUID) (*subscription.Subscription, error) {
	// The creator's only edge is scoped to its own rows; that proof goes
	// through CancelOwnPending, never the generic path.
	if cap == capability.Creator {
		return nil, fmt.Errorf("%w: creator cancels its own pending rows via the cancel path", xerrors.ErrForbidden)
	}

	current, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := capability.Authorize(cap, current.Status, newStatus); err != nil {
		return nil, err
	}

	params := subscription.TransitionParams{
		From: current.Status,
		To:   newStatus,
	}
	switch newStatus {
	case subscription.StatusActive:
		params.StampValidity = true
		if matchedEventID != nil {
			params.MatchedEventID = uuid.NullUUID{UUID: *matchedEventID, Valid: true}
		}
	case subscription.StatusPaymentOverdue:
		params.OweOverdueNotice = true
	case subscription.StatusExpired:
		params.OweExpiredNotice = true
	}
	if matchedEventID != nil && newStatus != subscription.StatusActive {
		return nil, fmt.Errorf("%w: matched event only accompanies activation", xerrors.ErrInvalidState)
	}
	if err := capability.CheckColumns(cap, params.Columns()); err != nil {
		return nil, err
	}

	sub, err := s.subs.Transition(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscription transitioned",
		zap.String("subscription_id", id.String()),
		zap.String("from", string(params.From)),
		zap.String("to", string(newStatus)),
		zap.String("capability", string(cap)))
	return sub, nil
}

// CancelOwnPending is the creator's restricted self-cancel: only its own
// row and only while it is still pending.
func (s *SubscriptionService) CancelOwnPending(ctx context.Context, id, userID uuid.UUID) (*subscription.Subscription, error) {
	current, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, fmt.Errorf("%w: subscription belongs to another user", xerrors.ErrForbidden)
	}
	if err := capability.Authorize(capability.Creator, current.Status, subscription.StatusCanceled); err != nil {
		return nil, err
	}

	sub, err := s.subs.Transition(ctx, id, subscription.TransitionParams{
		From: subscription.StatusPendingPayment,
		To:   subscription.StatusCanceled,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("pending subscription canceled by creator",
		zap.String("subscription_id", id.String()),
		zap.String("user_id", userID.String()))
	return sub, nil
}

// FindByID retrieves a subscription for any authenticated capability.
func (s *SubscriptionService) FindByID(ctx context.Context, cap capability.Capability, id uuid.UUID) (*subscription.Subscription, error) {
	if !cap.CanRead() {
		return nil, fmt.Errorf("%w: unknown capability", xerrors.ErrForbidden)
	}
	return s.subs.FindByID(ctx, id)
}

// FindPendingByAmount resolves the pending subscription reserving the
// given fingerprint amount, for manual payment reconciliation.
func (s *SubscriptionService) FindPendingByAmount(ctx context.Context, cap capability.Capability, amountMinor int64) (*subscription.Subscription, error) {
	if !cap.CanRead() {
		return nil, fmt.Errorf("%w: unknown capability", xerrors.ErrForbidden)
	}
	return s.subs.FindPendingByAmount(ctx, amountMinor)
}

// List retrieves subscriptions with filters.
func (s *SubscriptionService) List(ctx context.Context, cap capability.Capability, filters *subscription.ListFilters) (*subscription.ListResponse, error) {
	if !cap.CanRead() {
		return nil, fmt.Errorf("%w: unknown capability", xerrors.ErrForbidden)
	}
	subs, total, err := s.subs.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &subscription.ListResponse{
		Subscriptions: subs,
		Total:         total,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
	}, nil
}

// HasActiveForUser reports the user's current entitlement from
// authoritative state.
func (s *SubscriptionService) HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.subs.HasActiveForUser(ctx, userID)
}
