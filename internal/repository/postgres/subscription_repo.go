// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"subgate-service/internal/domain/subscription"
	xerrors "subgate-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `
	id, user_id, plan_id, status, expected_amount_minor, matched_event_id,
	valid_from, valid_until, notified_overdue, notified_expired, reminded_at,
	created_at, updated_at`

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row, sub *subscription.Subscription) error {
	return row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.ExpectedAmountMinor,
		&sub.MatchedEventID, &sub.ValidFrom, &sub.ValidUntil,
		&sub.NotifiedOverdue, &sub.NotifiedExpired, &sub.RemindedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
}

// Create inserts a subscription row in its initial status and queues the
// change fact in the same transaction. The pending-amount uniqueness
// constraint surfaces as Conflict; callers regenerate the amount and retry.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO subscriptions (user_id, plan_id, status, expected_amount_minor, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, now(), $5)
		RETURNING ` + subscriptionColumns

	if err := scanSubscription(
		tx.QueryRow(ctx, query, sub.UserID, sub.PlanID, sub.Status, sub.ExpectedAmountMinor, sub.ValidUntil),
		sub,
	); err != nil {
		return translateError(err)
	}

	if err := notifyChange(ctx, tx, sub.UserID); err != nil {
		return fmt.Errorf("failed to queue change notification: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateError(err)
	}
	return nil
}

// FindByID retrieves a subscription by id.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	var sub subscription.Subscription
	if err := scanSubscription(r.db.QueryRow(ctx, query, id), &sub); err != nil {
		return nil, translateError(err)
	}
	return &sub, nil
}

// FindPendingByAmount retrieves the single pending subscription reserving
// the given amount, if any.
func (r *SubscriptionRepository) FindPendingByAmount(ctx context.Context, amountMinor int64) (*subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'pending_payment' AND expected_amount_minor = $1`

	var sub subscription.Subscription
	if err := scanSubscription(r.db.QueryRow(ctx, query, amountMinor), &sub); err != nil {
		return nil, translateError(err)
	}
	return &sub, nil
}

// PendingAmountsBetween returns the amounts reserved by pending
// subscriptions within [low, high], for fingerprint perturbation.
func (r *SubscriptionRepository) PendingAmountsBetween(ctx context.Context, low, high int64) ([]int64, error) {
	query := `
		SELECT expected_amount_minor
		FROM subscriptions
		WHERE status = 'pending_payment' AND expected_amount_minor BETWEEN $1 AND $2`

	rows, err := r.db.Query(ctx, query, low, high)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending amounts: %w", err)
	}
	defer rows.Close()

	var amounts []int64
	for rows.Next() {
		var amount int64
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("failed to scan pending amount: %w", err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, rows.Err()
}

// ListPending returns pending subscriptions created after the cutoff,
// oldest first, the matcher's working set.
func (r *SubscriptionRepository) ListPending(ctx context.Context, cutoff time.Time) ([]subscription.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'pending_payment' AND created_at >= $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []subscription.Subscription{}
	for rows.Next() {
		var sub subscription.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// List retrieves subscriptions with filters, newest first.
func (r *SubscriptionRepository) List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Subscription, int64, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filters.UserID)
		argPos++
	}
	if len(filters.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argPos))
		statuses := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM subscriptions WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, subscriptionColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []subscription.Subscription{}
	for rows.Next() {
		var sub subscription.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, total, rows.Err()
}

// HasActiveForUser reports whether the user currently holds an active,
// unexpired entitlement.
func (r *SubscriptionRepository) HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status = 'active'
			  AND (valid_until IS NULL OR valid_until > now())
		)`
	var exists bool
	err := r.db.QueryRow(ctx, query, userID).Scan(&exists)
	return exists, err
}

// Transition applies one edge optimistically: the row must still be in the
// expected current status or the caller observes Conflict and must re-read.
func (r *SubscriptionRepository) Transition(ctx context.Context, id uuid.UUID, p subscription.TransitionParams) (*subscription.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := transitionInTx(ctx, tx, id, p)
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

// transitionInTx is the shared edge application used by both the plain
// transition path and the ledger's match transaction.
func transitionInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, p subscription.TransitionParams) (*subscription.Subscription, error) {
	sets := []string{"status = $2", "updated_at = now()"}
	args := []interface{}{id, p.To}
	argPos := 3

	if p.MatchedEventID.Valid {
		sets = append(sets, fmt.Sprintf("matched_event_id = $%d", argPos))
		args = append(args, p.MatchedEventID.UUID)
		argPos++
	}
	if p.StampValidity {
		sets = append(sets,
			"valid_from = now()",
			"valid_until = CASE WHEN p.duration_days IS NULL THEN NULL ELSE now() + make_interval(days => p.duration_days) END")
	}
	if p.OweOverdueNotice {
		sets = append(sets, "notified_overdue = FALSE")
	}
	if p.OweExpiredNotice {
		sets = append(sets, "notified_expired = FALSE")
	}

	from := fmt.Sprintf("$%d", argPos)
	args = append(args, p.From)

	query := fmt.Sprintf(`
		UPDATE subscriptions s
		SET %s
		FROM plans p
		WHERE p.id = s.plan_id AND s.id = $1 AND s.status = %s
		RETURNING s.id, s.user_id, s.plan_id, s.status, s.expected_amount_minor,
		          s.matched_event_id, s.valid_from, s.valid_until,
		          s.notified_overdue, s.notified_expired, s.reminded_at,
		          s.created_at, s.updated_at
	`, strings.Join(sets, ", "), from)

	var sub subscription.Subscription
	err := scanSubscription(tx.QueryRow(ctx, query, args...), &sub)
	if err == nil {
		return &sub, nil
	}
	if translated := translateError(err); !xerrors.Is(translated, xerrors.ErrNotFound) {
		return nil, translated
	}

	// No row changed: distinguish a missing id from a stale precondition.
	var current subscription.Status
	if lookupErr := tx.QueryRow(ctx, `SELECT status FROM subscriptions WHERE id = $1`, id).Scan(&current); lookupErr != nil {
		return nil, translateError(lookupErr)
	}
	return nil, fmt.Errorf("%w: subscription is %q, expected %q", xerrors.ErrConflict, current, p.From)
}

// MarkOverduePending flips pending paid subscriptions older than the
// cutoff to payment_overdue and marks the overdue notice as owed.
// Returns the affected user ids; each gets a change fact in the same
// transaction.
func (r *SubscriptionRepository) MarkOverduePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE subscriptions s
		SET status = 'payment_overdue', notified_overdue = FALSE, updated_at = now()
		FROM plans p
		WHERE p.id = s.plan_id
		  AND s.status = 'pending_payment'
		  AND s.created_at < $1
		  AND p.code NOT IN ('free', 'trial')
		RETURNING s.user_id`
	return r.sweep(ctx, query, cutoff)
}

// ActivateFreeTrialPending activates pending subscriptions on free/trial
// plans; the zero-cost lifecycle bypasses the ledger entirely.
func (r *SubscriptionRepository) ActivateFreeTrialPending(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		UPDATE subscriptions s
		SET status = 'active', updated_at = now(), valid_from = now(),
		    valid_until = CASE WHEN p.duration_days IS NULL THEN NULL ELSE now() + make_interval(days => p.duration_days) END
		FROM plans p
		WHERE p.id = s.plan_id
		  AND s.status = 'pending_payment'
		  AND p.code IN ('free', 'trial')
		RETURNING s.user_id`
	return r.sweep(ctx, query)
}

func (r *SubscriptionRepository) sweep(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sweep: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sweep row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}

	for _, userID := range userIDs {
		if err := notifyChange(ctx, tx, userID); err != nil {
			return nil, fmt.Errorf("failed to queue change notification: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translateError(err)
	}
	return userIDs, nil
}

// ClaimOverdueNotices atomically claims subscriptions owing an overdue
// reminder, so each reminder is sent at most once.
func (r *SubscriptionRepository) ClaimOverdueNotices(ctx context.Context, limit int) ([]subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET notified_overdue = TRUE, reminded_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM subscriptions
			WHERE status = 'payment_overdue' AND notified_overdue = FALSE
			ORDER BY updated_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + subscriptionColumns
	return r.claim(ctx, query, limit)
}

// ClaimExpiredNotices is the expiry counterpart of ClaimOverdueNotices.
func (r *SubscriptionRepository) ClaimExpiredNotices(ctx context.Context, limit int) ([]subscription.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET notified_expired = TRUE, updated_at = now()
		WHERE id IN (
			SELECT id FROM subscriptions
			WHERE status = 'expired' AND notified_expired = FALSE
			ORDER BY updated_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + subscriptionColumns
	return r.claim(ctx, query, limit)
}

func (r *SubscriptionRepository) claim(ctx context.Context, query string, limit int) ([]subscription.Subscription, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	subs := []subscription.Subscription{}
	for rows.Next() {
		var sub subscription.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, fmt.Errorf("failed to scan claimed subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
