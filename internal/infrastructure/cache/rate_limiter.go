// Package cache holds Redis-backed helpers shared by API instances.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitPrefix namespaces the sorted sets used for rate limiting
const RateLimitPrefix = "vv:ratelimit:"

// RateLimiter is a sliding-window limiter keyed by an arbitrary string
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter storing one sorted set per key
func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger.Named("ratelimit"),
		now:    time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the
// window. Rejected requests are not counted.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	setKey := RateLimitPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()[:8]

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, setKey)
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, setKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limiter pipeline failed",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	if countCmd.Val() >= int64(limit) {
		if err := r.client.ZRem(ctx, setKey, member).Err(); err != nil {
			r.logger.Warn("failed to drop rejected request", zap.String("key", key), zap.Error(err))
		}
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("current_count", countCmd.Val()),
			zap.Int("limit", limit))
		return false, nil
	}
	return true, nil
}

// Remaining returns how many requests key may still make in the window
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	setKey := RateLimitPrefix + key
	cutoff := strconv.FormatInt(r.now().Add(-window).UnixNano(), 10)
	if err := r.client.ZRemRangeByScore(ctx, setKey, "-inf", cutoff).Err(); err != nil {
		return 0, fmt.Errorf("rate limiter cleanup failed: %w", err)
	}
	count, err := r.client.ZCard(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter count failed: %w", err)
	}
	return max(limit-int(count), 0), nil
}

// Reset clears the window for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RateLimitPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limiter reset failed: %w", err)
	}
	return nil
}
