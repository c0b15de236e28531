package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/tier-router/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryLimiter_Burst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, 3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.InDelta(t, float64(time.Second), float64(res.RetryAfter), float64(10*time.Millisecond))

	// other clients have their own bucket
	res, _ = l.Allow(ctx, "client-b")
	assert.True(t, res.Allowed)

	now = now.Add(time.Second)
	res, _ = l.Allow(ctx, "client-a")
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(10, 10)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "old")
	now = now.Add(time.Hour)
	_, _ = l.Allow(context.Background(), "new")

	assert.Equal(t, 1, l.Sweep(time.Minute))
	assert.Len(t, l.clients, 1)
}

func TestNew_PicksImplementation(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerSecond: 5, Burst: 5, DefaultLimit: 10, Window: time.Minute}
	assert.IsType(t, &MemoryLimiter{}, New(cfg, nil, zap.NewNop()))

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	assert.IsType(t, &RedisLimiter{}, New(cfg, client, zap.NewNop()))
}

func TestRedisLimiter_WindowKey(t *testing.T) {
	l := NewRedisLimiter(nil, 0, 0)
	assert.Equal(t, 600, l.limit)
	assert.Equal(t, time.Minute, l.window)

	now := time.Date(2025, 1, 1, 10, 30, 45, 0, time.UTC)
	key, start := l.windowKey("1.2.3.4", now)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC), start)
	assert.Equal(t, "tier-router:ratelimit:1.2.3.4:1735727400", key)
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisLimiter_FixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLimiter(client, 2, time.Minute)
	key := uuid.NewString()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}
