package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/internal/llm/anthropic"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, baseURL string) llm.Provider {
	t.Helper()
	p, err := anthropic.NewAdapter(config.ProviderConfig{
		ID:      "anthropic-test",
		Type:    "anthropic",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Enabled: true,
	})
	require.NoError(t, err)
	return p
}

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body anthropic.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-haiku-20240307", body.Model)
		assert.Equal(t, "be brief", body.System)
		assert.Equal(t, 4096, body.MaxTokens)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "user", body.Messages[0].Role)
		}
		if assert.NotNil(t, body.Temperature) {
			assert.Equal(t, 1.0, *body.Temperature)
		}

		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-3-haiku-20240307",
			"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " world"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	temp := 1.7
	req := &api.ChatRequest{
		Messages: []api.ChatMessage{
			{Role: api.System, Content: "be brief"},
			{Role: api.User, Content: "Hi"},
		},
		Temperature: &temp,
	}

	resp, err := newAdapter(t, server.URL).Chat(context.Background(), req, "claude-3-haiku-20240307")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.Content())
	assert.Equal(t, api.ObjectCompletion, resp.Object)
	assert.Equal(t, api.NewUsage(7, 3), *resp.Usage)
	assert.Equal(t, "stop", *resp.Choices[0].FinishReason)
}

func TestAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":11}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"One"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":" two"}}`,
			`{"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":2}}`,
			`{"type":"message_stop"}`,
		}
		for _, e := range events {
			_, _ = fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
		}
	}))
	defer server.Close()

	var chunks []*api.ChatResponse
	err := newAdapter(t, server.URL).Stream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: "count"}},
	}, "claude-3-5-sonnet-20241022", func(c *api.ChatResponse) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "One", chunks[0].Content())
	assert.Equal(t, " two", chunks[1].Content())
	assert.Equal(t, "length", *chunks[2].Choices[0].FinishReason)
	assert.Equal(t, 13, chunks[2].Usage.TotalTokens)
}

func TestAnthropicStream_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer server.Close()

	called := false
	err := newAdapter(t, server.URL).Stream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: "x"}},
	}, "claude-3-5-sonnet-20241022", func(*api.ChatResponse) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic-test")
	assert.False(t, called)
}
