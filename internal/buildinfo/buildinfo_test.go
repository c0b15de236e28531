package buildinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func releaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestChecker_Check(t *testing.T) {
	ts := releaseServer(t, http.StatusOK, `{"tag_name":"v1.4.0","html_url":"https://example.com/r/v1.4.0"}`)
	c := NewChecker(ts.URL)

	info, err := c.Check(context.Background(), "v1.3.9")
	require.NoError(t, err)
	assert.True(t, info.Available)
	assert.Equal(t, "v1.4.0", info.Latest)
	assert.Equal(t, "https://example.com/r/v1.4.0", info.URL)

	info, err = c.Check(context.Background(), "1.4.0")
	require.NoError(t, err)
	assert.False(t, info.Available)

	_, err = c.Check(context.Background(), "not-a-version")
	assert.Error(t, err)
}

func TestChecker_BadResponses(t *testing.T) {
	_, err := NewChecker(releaseServer(t, http.StatusNotFound, `{}`).URL).Check(context.Background(), "v1.0.0")
	assert.Error(t, err)

	_, err = NewChecker(releaseServer(t, http.StatusOK, `{"tag_name":"latest"}`).URL).Check(context.Background(), "v1.0.0")
	assert.Error(t, err)
}

func TestWarnIfOutdated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ts := releaseServer(t, http.StatusOK, `{"tag_name":"v99.0.0"}`)

	WarnIfOutdated(context.Background(), NewChecker(ts.URL), zap.New(core))

	require.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
	assert.Contains(t, logs.All()[0].Message, "v99.0.0")
}
