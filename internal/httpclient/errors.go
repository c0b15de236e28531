package httpclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UpstreamError represents a non-2xx answer from an upstream service.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream error: status %d from %s: %s", e.StatusCode, redact(e.URL), msg)
	}
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, redact(e.URL))
}

// Message extracts error.message from the common vendor error envelope,
// falling back to the raw body.
func (e *UpstreamError) Message() string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(e.Body))
}

// Retryable reports whether a later candidate could reasonably succeed.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// redact drops query strings, which carry keys for some vendors.
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
