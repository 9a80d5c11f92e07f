// internal/service/auth/rate_limiter.go
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles credential exchanges per caller so a leaked
// identity name cannot be brute-forced against the token endpoint.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckTokenAttempt checks whether another token exchange is allowed for
// this ip/identity pair. Allows up to 10 attempts per 5 minutes.
func (r *RateLimiter) CheckTokenAttempt(ctx context.Context, ip, name string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:token:%s:%s", ip, name)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment token attempt: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		r.client.Expire(ctx, key, 5*time.Minute)
	}

	maxAttempts := int64(10)
	remaining := maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxAttempts, remaining, nil
}

// ResetTokenAttempts clears the counter after a successful exchange.
func (r *RateLimiter) ResetTokenAttempts(ctx context.Context, ip, name string) error {
	key := fmt.Sprintf("ratelimit:token:%s:%s", ip, name)
	return r.client.Del(ctx, key).Err()
}
