package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/tier-router/internal/guardrail"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorderSpy struct {
	mu      sync.Mutex
	records []UsageRecord
}

func (r *recorderSpy) Record(rec UsageRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recorderSpy) all() []UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UsageRecord(nil), r.records...)
}

func newTestService(opts Options, providers ...llm.Provider) Service {
	if opts.Router == nil {
		opts.Router = newTestRouter(testChains(), providers...)
	}
	opts.Logger = zap.NewNop()
	return NewService(opts)
}

func TestService_ChatPlaceholder(t *testing.T) {
	spy := &recorderSpy{}
	svc := newTestService(Options{Recorder: spy})

	resp, decision, err := svc.Chat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)

	assert.Equal(t, TierEco, decision.Tier)
	assert.True(t, decision.Fallback)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	assert.Contains(t, resp.Content(), "mock response")
	assert.Equal(t, api.NewUsage(10, 20), *resp.Usage)

	records := spy.all()
	require.Len(t, records, 1)
	assert.Equal(t, StatusCompleted, records[0].Status)
	assert.Equal(t, "gpt-3.5-turbo", records[0].Model)
	assert.Equal(t, 10, records[0].PromptTokens)
	assert.Equal(t, 20, records[0].CompletionTokens)
	assert.False(t, records[0].Stream)
}

func TestService_ChatRoutesPremium(t *testing.T) {
	openai := newMockProvider("openai", "gpt-", true)
	openai.On("Chat", mock.Anything, mock.Anything, "gpt-4o").
		Return(api.NewChatResponse("gpt-4o", "here is the code", api.NewUsage(12, 40)), nil)

	svc := newTestService(Options{}, openai)
	resp, decision, err := svc.Chat(context.Background(), userRequest("Implement a binary search tree in code"))

	require.NoError(t, err)
	assert.Equal(t, TierPremium, decision.Tier)
	assert.Equal(t, "gpt-4o", decision.Model)
	assert.Equal(t, "here is the code", resp.Content())
	openai.AssertExpectations(t)
}

func TestService_ModerationRejects(t *testing.T) {
	openai := newMockProvider("openai", "gpt-", true)
	spy := &recorderSpy{}
	svc := newTestService(Options{
		InputFilters: guardrail.Chain{guardrail.NewModerator([]string{"forbidden"})},
		Recorder:     spy,
	}, openai)

	_, _, err := svc.Chat(context.Background(), userRequest("tell me something FORBIDDEN"))

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "content_rejected", apiErr.Code)
	assert.ErrorIs(t, err, guardrail.ErrRejected)
	openai.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, spy.all())
}

func TestService_MasksPIIBothWays(t *testing.T) {
	openai := newMockProvider("openai", "gpt-", true)
	openai.On("Chat", mock.Anything, mock.MatchedBy(func(req *api.ChatRequest) bool {
		return strings.Contains(req.Messages[0].Content, "[REDACTED_EMAIL]") &&
			!strings.Contains(req.Messages[0].Content, "jane@example.com")
	}), mock.Anything).
		Return(api.NewChatResponse("gpt-3.5-turbo", "reach me at bob@example.org", api.NewUsage(1, 1)), nil)

	svc := newTestService(Options{
		InputFilters:  guardrail.Chain{guardrail.PIIMasker{}},
		OutputFilters: guardrail.Chain{guardrail.PIIMasker{}},
		Classifier:    ecoOnly(),
	}, openai)

	req := userRequest("mail jane@example.com")
	resp, _, err := svc.Chat(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "reach me at [REDACTED_EMAIL]", resp.Content())
	assert.Equal(t, "mail jane@example.com", req.Messages[0].Content, "caller's request must not be modified")
	openai.AssertExpectations(t)
}

func TestService_InvalidTierFallsBackToBalanced(t *testing.T) {
	svc := newTestService(Options{
		Classifier: ClassifierFunc(func(*api.ChatRequest) Tier { return Tier(9) }),
	})
	assert.Equal(t, TierBalanced, svc.Classify(userRequest("Hi")))
}

func TestService_StreamChatRecordsUsage(t *testing.T) {
	p := &scriptedProvider{name: "ollama", prefix: "llama", parts: []string{"one ", "two"}, terminal: true, failAfter: -1}
	spy := &recorderSpy{}
	svc := newTestService(Options{
		Router:     newTestRouter(testChains("llama-test"), p),
		Recorder:   spy,
		Classifier: ecoOnly(),
	})

	s, err := svc.StreamChat(context.Background(), userRequest("please tell me a joke"))
	require.NoError(t, err)
	collect(t, s, time.Second)

	records := spy.all()
	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Stream)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "llama-test", rec.Model)
	assert.Equal(t, "ollama", rec.Provider)
	assert.Positive(t, rec.PromptTokens)
	assert.Positive(t, rec.CompletionTokens)
}

func TestService_StreamChatRecordsDeliveredID(t *testing.T) {
	p := &scriptedProvider{name: "openai", prefix: "gpt-", parts: []string{"x", "y"}, terminal: true, failAfter: -1}
	spy := &recorderSpy{}
	svc := newTestService(Options{
		Router:     newTestRouter(testChains(), p),
		Recorder:   spy,
		Classifier: ecoOnly(),
	})

	s, err := svc.StreamChat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)
	events := collect(t, s, time.Second)

	records := spy.all()
	require.Len(t, records, 1)
	for _, ev := range events {
		if ev.Chunk != nil {
			assert.Equal(t, records[0].ID, ev.Chunk.ID)
		}
	}
}

func TestService_StreamChatInvalidTierFallsBackToBalanced(t *testing.T) {
	spy := &recorderSpy{}
	svc := newTestService(Options{
		Recorder:   spy,
		Classifier: ClassifierFunc(func(*api.ChatRequest) Tier { return Tier(7) }),
	})

	resp, decision, err := svc.Chat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)
	assert.Equal(t, TierBalanced, decision.Tier)

	s, err := svc.StreamChat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)
	collect(t, s, time.Second)

	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, TierBalanced, s.Tier())
	assert.Equal(t, resp.Model, s.Summary().Decision.Model)

	records := spy.all()
	require.Len(t, records, 2)
	assert.Equal(t, TierBalanced, records[1].Tier)
}

func TestService_StreamChatRecordsFailure(t *testing.T) {
	boom := errors.New("reset")
	p := &scriptedProvider{name: "ollama", prefix: "llama", parts: []string{"a", "b"}, failAfter: 1, err: boom}
	spy := &recorderSpy{}
	svc := newTestService(Options{
		Router:   newTestRouter(testChains("llama-test"), p),
		Recorder: spy,
	})

	s, err := svc.StreamChat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)
	collect(t, s, time.Second)

	records := spy.all()
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Contains(t, records[0].Error, "reset")
}

func TestService_StreamChatTooManySessions(t *testing.T) {
	hold := make(chan struct{})
	p := &scriptedProvider{name: "openai", prefix: "gpt-", parts: []string{"x"}, terminal: true, failAfter: -1, hold: hold}
	svc := newTestService(Options{
		Router:       newTestRouter(testChains(), p),
		Orchestrator: []OrchestratorOption{WithMaxSessions(1)},
	})

	first, err := svc.StreamChat(context.Background(), userRequest("Hi"))
	require.NoError(t, err)

	_, err = svc.StreamChat(context.Background(), userRequest("Hi"))
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "too_many_sessions", apiErr.Code)

	close(hold)
	collect(t, first, time.Second)
}

func TestService_Introspection(t *testing.T) {
	svc := newTestService(Options{},
		newMockProvider("openai", "gpt-", true),
		newMockProvider("anthropic", "claude-", false),
	)

	providers := svc.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "openai", providers[0].Name)
	assert.True(t, providers[0].Enabled)
	assert.False(t, providers[1].Enabled)

	assert.Len(t, svc.Chains(), 3)
	assert.Len(t, svc.Catalog().List().Data, 6)
}
