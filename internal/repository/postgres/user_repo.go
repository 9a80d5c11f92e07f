// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"subgate-service/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
	id, tg_user_id, username, subscription_token, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID, &u.TgUserID, &u.Username, &u.SubscriptionToken,
		&u.CreatedAt, &u.UpdatedAt,
	)
}

// UpsertByTgID creates the user on first contact or refreshes the
// username on subsequent ones.
func (r *UserRepository) UpsertByTgID(ctx context.Context, tgUserID int64, username sql.NullString) (*user.User, error) {
	query := `
		INSERT INTO users (tg_user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (tg_user_id) DO UPDATE
		SET username = EXCLUDED.username, updated_at = now()
		RETURNING ` + userColumns

	var u user.User
	if err := scanUser(r.db.QueryRow(ctx, query, tgUserID, username), &u); err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u user.User
	if err := scanUser(r.db.QueryRow(ctx, query, id), &u); err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// ActiveSubscriptionUserIDs returns users currently holding an active,
// unexpired subscription, for full entitlement resyncs.
func (r *UserRepository) ActiveSubscriptionUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT u.id
		FROM users u
		JOIN subscriptions s ON s.user_id = u.id
		WHERE s.status = 'active'
		  AND (s.valid_until IS NULL OR s.valid_until > now())`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitled users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
