package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tier-router:ratelimit:"

// RedisLimiter counts requests per key in fixed windows. The counter key
// carries the window start so it expires on its own.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 600
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) windowKey(key string, now time.Time) (string, time.Time) {
	start := now.Truncate(l.window)
	return fmt.Sprintf("%s%s:%d", keyPrefix, key, start.Unix()), start
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	redisKey, start := l.windowKey(key, now)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	res := Result{
		Limit:     l.limit,
		Allowed:   count <= l.limit,
		Remaining: max(0, l.limit-count),
	}
	if !res.Allowed {
		res.RetryAfter = start.Add(l.window).Sub(now)
	}
	return res, nil
}
