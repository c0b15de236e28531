package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler is a custom error handling middleware that handles all errors returned by handlers
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// a handler that already started the response owns it
		if c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			apiErr = api.InternalError("An unexpected error occurred.", err)
		}

		if apiErr.Log != nil {
			fields := []zap.Field{
				zap.Int("status", apiErr.Status),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(apiErr.Log),
			}
			if apiErr.Status >= 500 {
				logger.Error(apiErr.Message, fields...)
			} else {
				logger.Debug(apiErr.Message, fields...)
			}
		}

		c.AbortWithStatusJSON(apiErr.Status, apiErr.Response())
	}
}
