package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockProvider is a testify mock for the adapter contract. Identity and
// matching are plain fields; Chat and Stream go through the mock.
type MockProvider struct {
	mock.Mock
	name    string
	enabled bool
	prefix  string
}

func newMockProvider(name, prefix string, enabled bool) *MockProvider {
	return &MockProvider{name: name, prefix: prefix, enabled: enabled}
}

func (m *MockProvider) Name() string               { return m.name }
func (m *MockProvider) Type() string               { return "mock" }
func (m *MockProvider) Enabled() bool              { return m.enabled }
func (m *MockProvider) Supports(model string) bool { return strings.HasPrefix(model, m.prefix) }

func (m *MockProvider) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	args := m.Called(ctx, req, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ChatResponse), args.Error(1)
}

func (m *MockProvider) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	args := m.Called(ctx, req, model, onChunk)
	return args.Error(0)
}

// scriptedProvider streams a fixed list of fragments. When failAfter is
// non-negative it returns err after that many fragments. When hold is set
// it blocks before streaming until hold is closed or ctx is done.
type scriptedProvider struct {
	name      string
	prefix    string
	parts     []string
	terminal  bool
	failAfter int
	err       error
	hold      chan struct{}
	sawCancel chan struct{}
}

func (s *scriptedProvider) Name() string               { return s.name }
func (s *scriptedProvider) Type() string               { return "scripted" }
func (s *scriptedProvider) Enabled() bool              { return true }
func (s *scriptedProvider) Supports(model string) bool { return strings.HasPrefix(model, s.prefix) }

func (s *scriptedProvider) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return api.NewChatResponse(model, strings.Join(s.parts, ""), api.NewUsage(1, 1)), nil
}

func (s *scriptedProvider) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	if s.hold != nil {
		select {
		case <-s.hold:
		case <-ctx.Done():
			if s.sawCancel != nil {
				close(s.sawCancel)
			}
			return ctx.Err()
		}
	}
	id := api.NewResponseID()
	for i, p := range s.parts {
		if s.failAfter >= 0 && i == s.failAfter {
			return s.err
		}
		if err := onChunk(api.NewChunk(id, model, p, "")); err != nil {
			return err
		}
	}
	if s.failAfter >= 0 && s.failAfter >= len(s.parts) {
		return s.err
	}
	if s.terminal {
		return onChunk(api.NewChunk(id, model, "", api.FinishStop))
	}
	return nil
}

func userRequest(content string) *api.ChatRequest {
	return &api.ChatRequest{
		Messages: []api.ChatMessage{{Role: api.User, Content: content}},
	}
}

func testChains(eco ...string) *Chains {
	return NewChains(config.ChainsConfig{Eco: eco})
}

func newTestRouter(chains *Chains, providers ...llm.Provider) *Router {
	return NewRouter(chains, llm.NewRegistry(providers...), zap.NewNop(), WithFallbackChunkDelay(0))
}

// collect drains a session, failing the test if it does not close in time.
func collect(t *testing.T, s *Session, within time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(within)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("session %s did not close within %s", s.ID(), within)
			return events
		}
	}
}
