package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/ratelimit"
	"github.com/nulzo/tier-router/pkg/api"
	"go.uber.org/zap"
)

// RateLimit rejects callers over their limit with 429. Limiter failures
// let the request through.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.String("client", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))

			logger.Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", c.Request.URL.Path),
			)
			_ = c.Error(api.RateLimitError("Rate limit exceeded, please retry later"))
			c.Abort()
			return
		}

		c.Next()
	}
}
