package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	llm.Base
}

func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Chat(context.Context, *api.ChatRequest, string) (*api.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) Stream(context.Context, *api.ChatRequest, string, llm.ChunkFunc) error {
	return errors.New("not implemented")
}

func stub(id string, enabled bool, prefixes ...string) *stubProvider {
	key := ""
	if enabled {
		key = "key"
	}
	return &stubProvider{Base: llm.NewBase(config.ProviderConfig{
		ID: id, Type: "openai", APIKey: key, Prefixes: prefixes, Enabled: true,
	}, "http://localhost", nil, true)}
}

func TestNewBase_Enablement(t *testing.T) {
	b := llm.NewBase(config.ProviderConfig{ID: "a", Type: "openai", APIKey: "${KEY}", Enabled: true}, "http://x", nil, true)
	assert.False(t, b.Enabled())
	assert.Equal(t, "missing API key", b.DisabledReason())

	b = llm.NewBase(config.ProviderConfig{ID: "a", Type: "nope", APIKey: "k", Enabled: true}, "http://x", nil, true)
	assert.False(t, b.Enabled())
	assert.Contains(t, b.DisabledReason(), "invalid configuration")

	b = llm.NewBase(config.ProviderConfig{ID: "a", Type: "openai", APIKey: "k", Enabled: false}, "http://x", nil, true)
	assert.False(t, b.Enabled())

	b = llm.NewBase(config.ProviderConfig{ID: "a", Type: "ollama", Enabled: true}, "http://x", []string{"llama"}, false)
	assert.True(t, b.Enabled())
	assert.Empty(t, b.DisabledReason())
	assert.Equal(t, "http://x/api/chat", b.URL("/api/chat"))
}

func TestNewBase_StreamClientHasNoOverallTimeout(t *testing.T) {
	b := llm.NewBase(config.ProviderConfig{ID: "a", Type: "openai", APIKey: "k", Enabled: true, Timeout: 5 * time.Second}, "http://x", nil, true)

	assert.Equal(t, 5*time.Second, b.Client.Timeout)
	assert.Zero(t, b.StreamClient.Timeout)
	transport, ok := b.StreamClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, transport.ResponseHeaderTimeout)
}

func TestRegistry_FirstEnabledMatchWins(t *testing.T) {
	disabled := stub("disabled", false, "gpt-")
	first := stub("first", true, "gpt-")
	second := stub("second", true, "gpt-4")

	reg := llm.NewRegistry(disabled, first, second, nil)

	p, ok := reg.Lookup("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "first", p.Name())

	_, ok = reg.Lookup("claude-3-haiku-20240307")
	assert.False(t, ok)

	assert.Len(t, reg.Providers(), 3)
	assert.Equal(t, 2, reg.EnabledCount())
}

func TestFactory_UnknownType(t *testing.T) {
	_, err := llm.New(config.ProviderConfig{ID: "x", Type: "does-not-exist"})
	assert.ErrorIs(t, err, llm.ErrUnknownProviderType)
}

func TestStreamWriter_SingleTerminal(t *testing.T) {
	var chunks []*api.ChatResponse
	w := llm.NewStreamWriter("m", func(c *api.ChatResponse) error {
		chunks = append(chunks, c)
		return nil
	})

	require.NoError(t, w.Delta("a"))
	require.NoError(t, w.Delta(""))
	require.NoError(t, w.Finish("", nil))
	require.NoError(t, w.Finish("stop", nil))
	require.NoError(t, w.Delta("late"))

	require.Len(t, chunks, 2)
	assert.True(t, w.Done())
	assert.Equal(t, 2, w.Sent())
	assert.Equal(t, "stop", *chunks[1].Choices[0].FinishReason)
	assert.Equal(t, chunks[0].ID, chunks[1].ID)
}
