package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/internal/llm/ollama"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, baseURL string) llm.Provider {
	p, err := ollama.NewAdapter(config.ProviderConfig{
		ID:      "local",
		Type:    "ollama",
		BaseURL: baseURL,
		Config:  map[string]string{"mistral-7b": "mistral:7b"},
		Enabled: true,
	})
	require.NoError(t, err)
	return p
}

func TestOllamaEnabledWithoutKey(t *testing.T) {
	p := newAdapter(t, "")
	assert.True(t, p.Enabled())
	assert.True(t, p.Supports("llama3"))
	assert.True(t, p.Supports("mistral-7b"))
	assert.False(t, p.Supports("gpt-3.5-turbo"))
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body ollama.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mistral:7b", body.Model)
		assert.False(t, body.Stream)

		_, _ = w.Write([]byte(`{"model":"mistral:7b","message":{"role":"assistant","content":"hey"},"done":true,"prompt_eval_count":6,"eval_count":2}`))
	}))
	defer server.Close()

	resp, err := newAdapter(t, server.URL).Chat(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: "yo"}},
	}, "mistral-7b")
	require.NoError(t, err)
	assert.Equal(t, "hey", resp.Content())
	assert.Equal(t, "mistral-7b", resp.Model)
	assert.Equal(t, api.NewUsage(6, 2), *resp.Usage)
}

func TestOllamaStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, word := range []string{"a", "b", "c"} {
			_, _ = fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", word)
		}
		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":1,"eval_count":3}`+"\n")
	}))
	defer server.Close()

	var got []string
	var last *api.ChatResponse
	err := newAdapter(t, server.URL).Stream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: "abc"}},
	}, "llama3", func(c *api.ChatResponse) error {
		got = append(got, c.Content())
		last = c
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", ""}, got)
	assert.True(t, last.IsTerminal())
	assert.Equal(t, 4, last.Usage.TotalTokens)
}

func TestOllamaStream_InlineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"error":"model 'llama3' not found"}`+"\n")
	}))
	defer server.Close()

	err := newAdapter(t, server.URL).Stream(context.Background(), &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: "abc"}},
	}, "llama3", func(*api.ChatResponse) error { return nil })

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "not found")
}

func TestOllamaStripsThinking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ollama.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if !body.Stream {
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"<think>2+2</think>\n4"},"done":true}`))
			return
		}
		for _, part := range []string{"<thi", "nk>2+2", "</think>", "4"} {
			_, _ = fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	defer server.Close()

	p, err := ollama.NewAdapter(config.ProviderConfig{
		ID:      "local",
		Type:    "ollama",
		BaseURL: server.URL,
		Config:  map[string]string{"strip_thinking": "true"},
		Enabled: true,
	})
	require.NoError(t, err)

	req := &api.ChatRequest{Messages: []api.ChatMessage{{Role: api.User, Content: "2+2?"}}}

	resp, err := p.Chat(context.Background(), req, "llama3")
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Content())

	var text string
	require.NoError(t, p.Stream(context.Background(), req, "llama3", func(c *api.ChatResponse) error {
		text += c.Content()
		return nil
	}))
	assert.Equal(t, "4", text)
}
