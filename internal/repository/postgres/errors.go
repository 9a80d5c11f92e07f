// internal/repository/postgres/errors.go
package postgres

import (
	"errors"
	"fmt"

	xerrors "subgate-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories translate. Constraint violations
// must surface as domain errors so callers never handle engine specifics.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
)

// translateError maps storage-layer failures onto the domain taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", xerrors.ErrConflict, pgErr.ConstraintName)
	case codeSerializationFail, codeDeadlockDetected:
		return fmt.Errorf("%w: transaction serialization failure", xerrors.ErrConflict)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidState, pgErr.ConstraintName)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", xerrors.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}
