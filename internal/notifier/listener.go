// internal/notifier/listener.go
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Listener holds a dedicated connection on LISTEN and feeds every
// notification into the bus. The publishing side is the store itself:
// pg_notify inside the writing transaction, so facts arrive in commit
// order and never for a rolled-back write.
type Listener struct {
	pool       *pgxpool.Pool
	bus        *Bus
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewListener(pool *pgxpool.Pool, bus *Bus, logger *zap.Logger) *Listener {
	return &Listener{
		pool:       pool,
		bus:        bus,
		logger:     logger,
		retryDelay: 5 * time.Second,
	}
}

// Run blocks until ctx is done, reconnecting with a fixed delay whenever
// the listening connection fails.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			l.logger.Error("subscription change listener failed, reconnecting",
				zap.Error(err),
				zap.Duration("retry_in", l.retryDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	l.logger.Info("listening for subscription changes", zap.String("channel", Channel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change Change
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			l.logger.Warn("invalid change notification payload",
				zap.String("payload", notification.Payload),
				zap.Error(err))
			continue
		}
		l.bus.Publish(change)
	}
}
