package verifier

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"subgate-service/internal/domain/payment"
	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSweeper struct {
	pending      []subscription.Subscription
	overdueCalls int
	freeCalls    int
}

func (f *fakeSweeper) ActivateFreeTrialPending(ctx context.Context) ([]uuid.UUID, error) {
	f.freeCalls++
	return nil, nil
}

func (f *fakeSweeper) MarkOverduePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	f.overdueCalls++
	return nil, nil
}

func (f *fakeSweeper) ListPending(ctx context.Context, cutoff time.Time) ([]subscription.Subscription, error) {
	return f.pending, nil
}

type fakeLedger struct {
	events     map[string]*payment.Event
	matched    map[uuid.UUID]uuid.UUID
	matchErrs  map[uuid.UUID]error
	ingestErrs []error
	ingests    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events:    make(map[string]*payment.Event),
		matched:   make(map[uuid.UUID]uuid.UUID),
		matchErrs: make(map[uuid.UUID]error),
	}
}

func (f *fakeLedger) Ingest(ctx context.Context, ev *payment.Event) (*payment.Event, error) {
	f.ingests++
	if len(f.ingestErrs) > 0 {
		err := f.ingestErrs[0]
		f.ingestErrs = f.ingestErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if ev.ExternalID.Valid {
		key := ev.Source + ":" + ev.ExternalID.String
		if existing, ok := f.events[key]; ok {
			return existing, nil
		}
		stored := *ev
		stored.ID = uuid.New()
		f.events[key] = &stored
		return &stored, nil
	}
	stored := *ev
	stored.ID = uuid.New()
	return &stored, nil
}

func (f *fakeLedger) IsMatched(ctx context.Context, eventID uuid.UUID) (bool, error) {
	_, ok := f.matched[eventID]
	return ok, nil
}

func (f *fakeLedger) MatchToSubscription(ctx context.Context, eventID, subscriptionID uuid.UUID) (*subscription.Subscription, error) {
	if err, ok := f.matchErrs[eventID]; ok {
		return nil, err
	}
	if _, ok := f.matched[eventID]; ok {
		return nil, xerrors.ErrAlreadyMatched
	}
	f.matched[eventID] = subscriptionID
	return &subscription.Subscription{ID: subscriptionID, Status: subscription.StatusActive}, nil
}

type fakeSource struct {
	messages []payment.RawMessage
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, limit int) ([]payment.RawMessage, error) {
	return f.messages, nil
}

func bankMessage(id int64, text string) payment.RawMessage {
	return payment.RawMessage{
		Source:     "fake",
		Text:       text,
		ReceivedAt: time.Now().UTC(),
		Meta:       map[string]interface{}{"id": id},
	}
}

func newTestService(sweeper *fakeSweeper, ledger *fakeLedger, source MessageSource) *VerifierService {
	return NewVerifierService(sweeper, ledger, []MessageSource{source}, NewVkTransferMatcher(), Config{}, zap.NewNop())
}

func TestRunOnceMatchesPendingByAmount(t *testing.T) {
	subID := uuid.New()
	sweeper := &fakeSweeper{pending: []subscription.Subscription{
		{ID: subID, Status: subscription.StatusPendingPayment, ExpectedAmountMinor: 19903},
	}}
	ledger := newFakeLedger()
	source := &fakeSource{messages: []payment.RawMessage{
		bankMessage(1, "Поступление 199.03 RUR по СБП"),
	}}

	svc := newTestService(sweeper, ledger, source)
	require.NoError(t, svc.RunOnce(context.Background()))

	require.Len(t, ledger.matched, 1)
	for _, matchedSub := range ledger.matched {
		assert.Equal(t, subID, matchedSub)
	}
	assert.Equal(t, 1, sweeper.freeCalls)
	assert.Equal(t, 1, sweeper.overdueCalls)
}

func TestRunOnceIgnoresUnknownAmounts(t *testing.T) {
	sweeper := &fakeSweeper{pending: []subscription.Subscription{
		{ID: uuid.New(), Status: subscription.StatusPendingPayment, ExpectedAmountMinor: 19903},
	}}
	ledger := newFakeLedger()
	source := &fakeSource{messages: []payment.RawMessage{
		bankMessage(1, "Поступление 500.00 RUR по СБП"),
	}}

	svc := newTestService(sweeper, ledger, source)
	require.NoError(t, svc.RunOnce(context.Background()))

	// The payment is still recorded even though nothing matches it.
	assert.Equal(t, 1, ledger.ingests)
	assert.Empty(t, ledger.matched)
}

func TestRunOnceRedeliveryIsIdempotent(t *testing.T) {
	subID := uuid.New()
	sweeper := &fakeSweeper{pending: []subscription.Subscription{
		{ID: subID, Status: subscription.StatusPendingPayment, ExpectedAmountMinor: 19903},
	}}
	ledger := newFakeLedger()
	msg := bankMessage(7, "Поступление 199.03 RUR по СБП")
	source := &fakeSource{messages: []payment.RawMessage{msg}}

	svc := newTestService(sweeper, ledger, source)
	require.NoError(t, svc.RunOnce(context.Background()))
	require.NoError(t, svc.RunOnce(context.Background()))

	// One event, one match, despite redelivery.
	assert.Len(t, ledger.events, 1)
	assert.Len(t, ledger.matched, 1)
}

func TestRunOnceSkipsConcurrentMatch(t *testing.T) {
	subID := uuid.New()
	sweeper := &fakeSweeper{pending: []subscription.Subscription{
		{ID: subID, Status: subscription.StatusPendingPayment, ExpectedAmountMinor: 19903},
	}}
	ledger := newFakeLedger()
	source := &fakeSource{messages: []payment.RawMessage{
		bankMessage(1, "Поступление 199.03 RUR по СБП"),
	}}

	svc := newTestService(sweeper, ledger, source)

	// Cancel raced ahead of the match: the store rejects with NotPending
	// and the cycle treats the event as already handled.
	pre, err := ledger.Ingest(context.Background(), &payment.Event{
		Source:      "fake",
		ExternalID:  sql.NullString{String: "1", Valid: true},
		AmountMinor: 19903,
	})
	require.NoError(t, err)
	ledger.matchErrs[pre.ID] = xerrors.ErrNotPending

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Empty(t, ledger.matched)
}

func TestSeenCacheEvictsOldest(t *testing.T) {
	svc := NewVerifierService(&fakeSweeper{}, newFakeLedger(), nil, NewVkTransferMatcher(), Config{SeenCacheLimit: 2}, zap.NewNop())

	svc.markSeen("a")
	svc.markSeen("b")
	svc.markSeen("c")

	// "a" was evicted, the two newest keys remain.
	assert.False(t, svc.seen["a"])
	assert.True(t, svc.seen["b"])
	assert.True(t, svc.seen["c"])
}

func TestRunOnceRetriesAfterTransientIngestFailure(t *testing.T) {
	subID := uuid.New()
	sweeper := &fakeSweeper{pending: []subscription.Subscription{
		{ID: subID, Status: subscription.StatusPendingPayment, ExpectedAmountMinor: 19903},
	}}
	ledger := newFakeLedger()
	ledger.ingestErrs = []error{errors.New("connection reset")}
	source := &fakeSource{messages: []payment.RawMessage{
		bankMessage(3, "Поступление 199.03 RUR по СБП"),
	}}

	svc := newTestService(sweeper, ledger, source)

	// First cycle fails at ingest; the message must not be remembered as
	// handled, so the next cycle picks it up and activates the match.
	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Empty(t, ledger.matched)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Len(t, ledger.matched, 1)
	for _, matchedSub := range ledger.matched {
		assert.Equal(t, subID, matchedSub)
	}
}
