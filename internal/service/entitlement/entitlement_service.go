// internal/service/entitlement/entitlement_service.go
package entitlement

import (
	"context"
	"fmt"
	"time"

	"subgate-service/internal/notifier"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "entitlement:"
	defaultTTL = 5 * time.Minute
)

// EntitlementChecker answers from authoritative subscription state.
type EntitlementChecker interface {
	HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ActiveUserLister enumerates users currently holding an active
// subscription, used to warm the cache at startup.
type ActiveUserLister interface {
	ActiveSubscriptionUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EntitlementService caches per-user entitlement answers in Redis and
// invalidates them from the change feed, so a user's access flips within
// one notification round-trip of the commit that changed it.
type EntitlementService struct {
	checker EntitlementChecker
	users   ActiveUserLister
	rdb     *redis.Client
	bus     *notifier.Bus
	ttl     time.Duration
	logger  *zap.Logger
}

func NewEntitlementService(checker EntitlementChecker, users ActiveUserLister, rdb *redis.Client, bus *notifier.Bus, logger *zap.Logger) *EntitlementService {
	return &EntitlementService{
		checker: checker,
		users:   users,
		rdb:     rdb,
		bus:     bus,
		ttl:     defaultTTL,
		logger:  logger,
	}
}

func cacheKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// IsEntitled reports whether the user currently holds an active
// subscription. Cache misses and Redis outages fall through to storage.
func (s *EntitlementService) IsEntitled(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := cacheKey(userID)
	cached, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case err != redis.Nil:
		s.logger.Warn("entitlement cache read failed", zap.Error(err))
	}

	entitled, err := s.checker.HasActiveForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve entitlement: %w", err)
	}

	value := "0"
	if entitled {
		value = "1"
	}
	if err := s.rdb.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.Warn("entitlement cache write failed", zap.Error(err))
	}
	return entitled, nil
}

// Prewarm seeds positive answers for every currently entitled user, so a
// restart does not stampede storage with cache misses.
func (s *EntitlementService) Prewarm(ctx context.Context) error {
	userIDs, err := s.users.ActiveSubscriptionUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entitled users: %w", err)
	}
	for _, userID := range userIDs {
		if err := s.rdb.Set(ctx, cacheKey(userID), "1", s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to warm entitlement cache: %w", err)
		}
	}
	s.logger.Info("entitlement cache warmed", zap.Int("users", len(userIDs)))
	return nil
}

// Run drops cached answers for users named in the change feed until the
// context is canceled.
func (s *EntitlementService) Run(ctx context.Context) error {
	changes, cancel := s.bus.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.rdb.Del(ctx, cacheKey(change.UserID)).Err(); err != nil {
				s.logger.Warn("entitlement cache invalidation failed",
					zap.String("user_id", change.UserID.String()),
					zap.Error(err))
			}
		}
	}
}
