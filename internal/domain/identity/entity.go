// internal/domain/identity/entity.go
package identity

import (
	"time"

	"subgate-service/internal/domain/capability"
)

// ServiceIdentity is a machine caller bound to exactly one capability.
// Secrets are stored as bcrypt hashes, never in the clear.
type ServiceIdentity struct {
	ID         int64                 `json:"id" db:"id"`
	Name       string                `json:"name" db:"name"`
	Capability capability.Capability `json:"capability" db:"capability"`
	SecretHash string                `json:"-" db:"secret_hash"`
	IsActive   bool                  `json:"is_active" db:"is_active"`
	CreatedAt  time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at" db:"updated_at"`
}

type TokenRequest struct {
	Name   string `json:"name" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type TokenResponse struct {
	Token      string `json:"token"`
	Capability string `json:"capability"`
	ExpiresIn  int64  `json:"expires_in"`
}
