// internal/repository/postgres/identity_repo.go
package postgres

import (
	"context"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/domain/identity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const identityColumns = `
	id, name, capability, secret_hash, is_active, created_at, updated_at`

type ServiceIdentityRepository struct {
	db *pgxpool.Pool
}

func NewServiceIdentityRepository(db *pgxpool.Pool) *ServiceIdentityRepository {
	return &ServiceIdentityRepository{db: db}
}

func scanIdentity(row pgx.Row, si *identity.ServiceIdentity) error {
	return row.Scan(
		&si.ID, &si.Name, &si.Capability, &si.SecretHash, &si.IsActive,
		&si.CreatedAt, &si.UpdatedAt,
	)
}

func (r *ServiceIdentityRepository) FindByName(ctx context.Context, name string) (*identity.ServiceIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM service_identities WHERE name = $1 AND is_active`

	var si identity.ServiceIdentity
	if err := scanIdentity(r.db.QueryRow(ctx, query, name), &si); err != nil {
		return nil, translateError(err)
	}
	return &si, nil
}

// Ensure creates or refreshes a deployment-configured identity. Grants are
// deployment configuration, never request-time state.
func (r *ServiceIdentityRepository) Ensure(ctx context.Context, name string, cap capability.Capability, secretHash string) error {
	query := `
		INSERT INTO service_identities (name, capability, secret_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET capability = EXCLUDED.capability,
		    secret_hash = EXCLUDED.secret_hash,
		    is_active = TRUE,
		    updated_at = now()`

	_, err := r.db.Exec(ctx, query, name, cap, secretHash)
	return translateError(err)
}
