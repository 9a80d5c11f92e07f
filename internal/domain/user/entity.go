// internal/domain/user/entity.go
package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID      `json:"id" db:"id"`
	TgUserID int64          `json:"tg_user_id" db:"tg_user_id"`
	Username sql.NullString `json:"username,omitempty" db:"username"`

	// Opaque token handed to the access layer; rotating it revokes access.
	SubscriptionToken uuid.UUID `json:"subscription_token" db:"subscription_token"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
