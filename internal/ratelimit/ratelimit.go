// Package ratelimit decides whether a client may issue another request.
// The in-memory limiter is a token bucket per client; the Redis limiter is a
// fixed window shared by every gateway instance.
package ratelimit

import (
	"context"
	"time"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// New picks the Redis limiter when a client is given, the in-memory one
// otherwise.
func New(cfg config.RateLimitConfig, client *redis.Client, logger *zap.Logger) Limiter {
	if client != nil {
		logger.Info("Using Redis rate limiter",
			zap.Int("limit", cfg.DefaultLimit),
			zap.Duration("window", cfg.Window),
		)
		return NewRedisLimiter(client, cfg.DefaultLimit, cfg.Window)
	}
	logger.Info("Using in-memory rate limiter",
		zap.Float64("rps", cfg.RequestsPerSecond),
		zap.Int("burst", cfg.Burst),
	)
	return NewMemoryLimiter(cfg.RequestsPerSecond, cfg.Burst)
}
