package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	clientKeyKey = "client_key"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// ClientKey identifies the caller for rate limiting: the API key when one
// was authenticated, the client IP otherwise.
func ClientKey(c *gin.Context) string {
	if key := c.GetString(clientKeyKey); key != "" {
		return key
	}
	return "ip:" + c.ClientIP()
}

func setClientKey(c *gin.Context, token string) {
	sum := sha256.Sum256([]byte(token))
	c.Set(clientKeyKey, "key:"+hex.EncodeToString(sum[:8]))
}
