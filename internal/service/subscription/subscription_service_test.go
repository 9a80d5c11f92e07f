package subscription

import (
	"context"
	"fmt"
	"testing"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/domain/plan"
	subdomain "subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriptionStore struct {
	rows           map[uuid.UUID]*subdomain.Subscription
	pendingAmounts []int64
	createErrs     []error
	created        []*subdomain.Subscription
	transitions    []subdomain.TransitionParams
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{rows: make(map[uuid.UUID]*subdomain.Subscription)}
}

func (f *fakeSubscriptionStore) Create(ctx context.Context, sub *subdomain.Subscription) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	sub.ID = uuid.New()
	f.rows[sub.ID] = sub
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubscriptionStore) FindByID(ctx context.Context, id uuid.UUID) (*subdomain.Subscription, error) {
	sub, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeSubscriptionStore) FindPendingByAmount(ctx context.Context, amountMinor int64) (*subdomain.Subscription, error) {
	for _, sub := range f.rows {
		if sub.Status == subdomain.StatusPendingPayment && sub.ExpectedAmountMinor == amountMinor {
			return sub, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubscriptionStore) PendingAmountsBetween(ctx context.Context, low, high int64) ([]int64, error) {
	var out []int64
	for _, a := range f.pendingAmounts {
		if a >= low && a <= high {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) List(ctx context.Context, filters *subdomain.ListFilters) ([]subdomain.Subscription, int64, error) {
	var out []subdomain.Subscription
	for _, sub := range f.rows {
		out = append(out, *sub)
	}
	return out, int64(len(out)), nil
}

func (f *fakeSubscriptionStore) Transition(ctx context.Context, id uuid.UUID, p subdomain.TransitionParams) (*subdomain.Subscription, error) {
	sub, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if sub.Status != p.From {
		return nil, fmt.Errorf("%w: subscription is %q, expected %q", xerrors.ErrConflict, sub.Status, p.From)
	}
	sub.Status = p.To
	if p.MatchedEventID.Valid {
		sub.MatchedEventID = p.MatchedEventID
	}
	f.transitions = append(f.transitions, p)
	copied := *sub
	return &copied, nil
}

func (f *fakeSubscriptionStore) HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	for _, sub := range f.rows {
		if sub.UserID == userID && sub.Status == subdomain.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

type fakePlanStore struct {
	plans map[string]*plan.Plan
}

func (f *fakePlanStore) FindByCode(ctx context.Context, code string) (*plan.Plan, error) {
	p, ok := f.plans[code]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

func newService(subs *fakeSubscriptionStore, plans map[string]*plan.Plan) *SubscriptionService {
	return NewSubscriptionService(subs, &fakePlanStore{plans: plans}, zap.NewNop())
}

func monthPlan() *plan.Plan {
	return &plan.Plan{ID: uuid.New(), Code: "month_1", PriceRub: 199, IsActive: true}
}

func TestFindFreeAmountSkipsReserved(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.pendingAmounts = []int64{19901, 19902}
	svc := newService(store, nil)

	amount, err := svc.FindFreeAmount(context.Background(), 19900)
	require.NoError(t, err)
	assert.Equal(t, int64(19903), amount)
}

func TestFindFreeAmountFallsBackToNextWindow(t *testing.T) {
	store := newFakeSubscriptionStore()
	for cents := int64(1); cents < 100; cents++ {
		store.pendingAmounts = append(store.pendingAmounts, 19900+cents)
	}
	svc := newService(store, nil)

	amount, err := svc.FindFreeAmount(context.Background(), 19900)
	require.NoError(t, err)
	assert.Equal(t, int64(20001), amount)
}

func TestCreatePending(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := newService(store, map[string]*plan.Plan{"month_1": monthPlan()})
	userID := uuid.New()

	sub, err := svc.CreatePending(context.Background(), capability.Creator, userID, "month_1")
	require.NoError(t, err)

	assert.Equal(t, subdomain.StatusPendingPayment, sub.Status)
	assert.Equal(t, userID, sub.UserID)
	// Perturbed above the base price, never equal to it.
	assert.Greater(t, sub.ExpectedAmountMinor, int64(19900))
	assert.LessOrEqual(t, sub.ExpectedAmountMinor, int64(19999))
}

func TestCreatePendingRetriesOnAmountCollision(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.createErrs = []error{xerrors.ErrConflict}
	svc := newService(store, map[string]*plan.Plan{"month_1": monthPlan()})

	sub, err := svc.CreatePending(context.Background(), capability.Creator, uuid.New(), "month_1")
	require.NoError(t, err)
	assert.NotNil(t, sub)
	assert.Len(t, store.created, 1)
}

func TestCreatePendingDeniedForVerifier(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := newService(store, map[string]*plan.Plan{"month_1": monthPlan()})

	_, err := svc.CreatePending(context.Background(), capability.Verifier, uuid.New(), "month_1")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	assert.Empty(t, store.created)
}

func TestCreatePendingRejectsInactivePlan(t *testing.T) {
	p := monthPlan()
	p.IsActive = false
	svc := newService(newFakeSubscriptionStore(), map[string]*plan.Plan{"month_1": p})

	_, err := svc.CreatePending(context.Background(), capability.Creator, uuid.New(), "month_1")
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}

func TestCreateFreeActive(t *testing.T) {
	store := newFakeSubscriptionStore()
	svc := newService(store, map[string]*plan.Plan{
		"free": {ID: uuid.New(), Code: plan.CodeFree, PriceRub: 0, IsActive: true},
	})

	sub, err := svc.CreateFreeActive(context.Background(), capability.Creator, uuid.New(), "free")
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusActive, sub.Status)
	assert.Zero(t, sub.ExpectedAmountMinor)
}

func TestCreateFreeActiveRejectsPaidPlan(t *testing.T) {
	svc := newService(newFakeSubscriptionStore(), map[string]*plan.Plan{"month_1": monthPlan()})

	_, err := svc.CreateFreeActive(context.Background(), capability.Creator, uuid.New(), "month_1")
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}

func TestTransitionVerifierFailsPending(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	sub, err := svc.Transition(context.Background(), capability.Verifier, id, subdomain.StatusPaymentFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusPaymentFailed, sub.Status)
}

func TestTransitionOverdueStampsNoticeColumn(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	_, err := svc.Transition(context.Background(), capability.Verifier, id, subdomain.StatusPaymentOverdue, nil)
	require.NoError(t, err)

	require.Len(t, store.transitions, 1)
	assert.True(t, store.transitions[0].OweOverdueNotice)
	assert.Contains(t, store.transitions[0].Columns(), "notified_overdue")
}

func TestTransitionDeniedLeavesRowUnchanged(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, Status: subdomain.StatusActive}
	svc := newService(store, nil)

	_, err := svc.Transition(context.Background(), capability.Verifier, id, subdomain.StatusCanceled, nil)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// Denial happens before the store is touched.
	assert.Empty(t, store.transitions)
	assert.Equal(t, subdomain.StatusActive, store.rows[id].Status)
}

func TestTransitionRejectsMatchedEventOutsideActivation(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	eventID := uuid.New()
	_, err := svc.Transition(context.Background(), capability.Verifier, id, subdomain.StatusCanceled, &eventID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidState)
}

func TestTransitionRejectsCreatorOnGenericPath(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, UserID: uuid.New(), Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	// The creator's cancel edge is bound to its own rows; without an
	// ownership proof the generic path refuses it outright.
	_, err := svc.Transition(context.Background(), capability.Creator, id, subdomain.StatusCanceled, nil)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	assert.Empty(t, store.transitions)
	assert.Equal(t, subdomain.StatusPendingPayment, store.rows[id].Status)
}

func TestCancelOwnPending(t *testing.T) {
	store := newFakeSubscriptionStore()
	id, owner := uuid.New(), uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, UserID: owner, Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	sub, err := svc.CancelOwnPending(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusCanceled, sub.Status)
}

func TestCancelOwnPendingRejectsOtherUsers(t *testing.T) {
	store := newFakeSubscriptionStore()
	id := uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, UserID: uuid.New(), Status: subdomain.StatusPendingPayment}
	svc := newService(store, nil)

	_, err := svc.CancelOwnPending(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestCancelOwnPendingRejectsSettledRow(t *testing.T) {
	store := newFakeSubscriptionStore()
	id, owner := uuid.New(), uuid.New()
	store.rows[id] = &subdomain.Subscription{ID: id, UserID: owner, Status: subdomain.StatusActive}
	svc := newService(store, nil)

	// Cancel races with match-and-activate; the later writer loses.
	_, err := svc.CancelOwnPending(context.Background(), id, owner)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}
