package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisLimiter is the shared-store variant: a sliding log of request
// timestamps in a sorted set, trimmed, counted and appended in one atomic
// pipeline. Correct across any number of portal instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a sliding-log limiter on the given client.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, key)
}

// Check trims entries older than the window, counts what remains, and adds
// the current request, all in one pipeline. Any Redis failure fails open:
// blocking traffic because the limiter store is down is worse than letting
// a burst through.
func (r *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) Result {
	rkey := r.redisKey(key)
	now := r.now()
	windowStart := now.Add(-window)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, rkey)
	oldestCmd := pipe.ZRangeWithScores(ctx, rkey, 0, 0)
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()),
	})
	pipe.Expire(ctx, rkey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter store unavailable, failing open")
		return Result{Allowed: true, Remaining: limit - 1}
	}

	count := int(countCmd.Val())
	if count >= limit {
		return Result{Allowed: false, RetryAfter: retryAfter(oldestCmd.Val(), now, window)}
	}

	return Result{Allowed: true, Remaining: limit - count - 1}
}

// retryAfter reports how long until the oldest logged request ages out of
// the window, clamped to [1s, window]. An empty log falls back to the full
// window.
func retryAfter(oldest []redis.Z, now time.Time, window time.Duration) time.Duration {
	retry := window
	if len(oldest) > 0 {
		freesUp := time.UnixMilli(int64(oldest[0].Score)).Add(window)
		if until := freesUp.Sub(now); until < retry {
			retry = until
		}
	}
	if retry < time.Second {
		retry = time.Second
	}
	return retry
}

var _ Limiter = (*RedisLimiter)(nil)
