// internal/repository/postgres/payment_event_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"subgate-service/internal/domain/payment"
	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `
	id, source, external_id, amount_minor, payload, received_at, created_at`

type PaymentEventRepository struct {
	db *pgxpool.Pool
}

func NewPaymentEventRepository(db *pgxpool.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func scanEvent(row pgx.Row, ev *payment.Event) error {
	var payloadJSON []byte
	if err := row.Scan(
		&ev.ID, &ev.Source, &ev.ExternalID, &ev.AmountMinor,
		&payloadJSON, &ev.ReceivedAt, &ev.CreatedAt,
	); err != nil {
		return err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
			return fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
	}
	return nil
}

// Ingest records an inbound payment notification exactly once. Redelivery
// of a (source, external id) pair returns the previously stored event
// instead of an error; upstream delivery is at-least-once.
func (r *PaymentEventRepository) Ingest(ctx context.Context, ev *payment.Event) (*payment.Event, error) {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if ev.Payload == nil {
		payloadJSON = []byte(`{}`)
	}

	if !ev.ExternalID.Valid {
		// No correlation key, no dedup possible: plain append.
		query := `
			INSERT INTO payment_events (source, external_id, amount_minor, payload, received_at)
			VALUES ($1, NULL, $2, $3, $4)
			RETURNING ` + eventColumns
		var stored payment.Event
		if err := scanEvent(r.db.QueryRow(ctx, query, ev.Source, ev.AmountMinor, payloadJSON, ev.ReceivedAt), &stored); err != nil {
			return nil, translateError(err)
		}
		return &stored, nil
	}

	query := `
		INSERT INTO payment_events (source, external_id, amount_minor, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, external_id) WHERE external_id IS NOT NULL DO NOTHING
		RETURNING ` + eventColumns

	var stored payment.Event
	err = scanEvent(r.db.QueryRow(ctx, query, ev.Source, ev.ExternalID.String, ev.AmountMinor, payloadJSON, ev.ReceivedAt), &stored)
	if err == nil {
		return &stored, nil
	}
	if translated := translateError(err); !xerrors.Is(translated, xerrors.ErrNotFound) {
		return nil, translated
	}

	// Conflict: the event was ingested earlier, return that row.
	return r.FindBySourceExternalID(ctx, ev.Source, ev.ExternalID.String)
}

// FindByID retrieves an event by id.
func (r *PaymentEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM payment_events WHERE id = $1`

	var ev payment.Event
	if err := scanEvent(r.db.QueryRow(ctx, query, id), &ev); err != nil {
		return nil, translateError(err)
	}
	return &ev, nil
}

// FindBySourceExternalID retrieves an event by its correlation key.
func (r *PaymentEventRepository) FindBySourceExternalID(ctx context.Context, source, externalID string) (*payment.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM payment_events WHERE source = $1 AND external_id = $2`

	var ev payment.Event
	if err := scanEvent(r.db.QueryRow(ctx, query, source, externalID), &ev); err != nil {
		return nil, translateError(err)
	}
	return &ev, nil
}

// IsMatched reports whether any subscription references the event.
func (r *PaymentEventRepository) IsMatched(ctx context.Context, eventID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE matched_event_id = $1)`
	var matched bool
	err := r.db.QueryRow(ctx, query, eventID).Scan(&matched)
	return matched, err
}

// MatchToSubscription associates one event with one pending subscription
// and activates it, all inside a single serializable transaction. Exactly
// one such call may commit for a given event or subscription; racing
// callers observe AlreadyMatched or Conflict and must re-read state.
func (r *PaymentEventRepository) MatchToSubscription(ctx context.Context, eventID, subscriptionID uuid.UUID) (*subscription.Subscription, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin match: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the event first so concurrent matchers serialize on it.
	var eventAmount int64
	err = tx.QueryRow(ctx,
		`SELECT amount_minor FROM payment_events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&eventAmount)
	if err != nil {
		return nil, translateError(err)
	}

	var taken bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE matched_event_id = $1)`,
		eventID,
	).Scan(&taken); err != nil {
		return nil, translateError(err)
	}
	if taken {
		return nil, fmt.Errorf("%w: event %s", xerrors.ErrAlreadyMatched, eventID)
	}

	var (
		current  subscription.Status
		expected int64
	)
	err = tx.QueryRow(ctx,
		`SELECT status, expected_amount_minor FROM subscriptions WHERE id = $1 FOR UPDATE`,
		subscriptionID,
	).Scan(&current, &expected)
	if err != nil {
		return nil, translateError(err)
	}
	if current != subscription.StatusPendingPayment {
		return nil, fmt.Errorf("%w: subscription is %q", xerrors.ErrNotPending, current)
	}
	if expected != eventAmount {
		return nil, fmt.Errorf("%w: subscription expects %d, event carries %d",
			xerrors.ErrAmountMismatch, expected, eventAmount)
	}

	// Verifier-path activation edge, validity stamped from the plan.
	sub, err := transitionInTx(ctx, tx, subscriptionID, subscription.TransitionParams{
		From:           subscription.StatusPendingPayment,
		To:             subscription.StatusActive,
		MatchedEventID: uuid.NullUUID{UUID: eventID, Valid: true},
		StampValidity:  true,
	})
	if err != nil {
		return nil, err
	}

	if err := notifyChange(ctx, tx, sub.UserID); err != nil {
		return nil, fmt.Errorf("failed to queue change notification: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateError(err)
	}
	return sub, nil
}
