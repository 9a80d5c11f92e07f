// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"encoding/json"

	"subgate-service/internal/notifier"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// notifyChange queues a change fact for the affected user inside tx.
// Postgres only delivers it once the transaction commits, so listeners
// never observe a rolled-back write.
func notifyChange(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	payload, err := json.Marshal(notifier.Change{UserID: userID})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifier.Channel, string(payload))
	return err
}
