package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/guardrail"
	"github.com/nulzo/tier-router/internal/metrics"
	"github.com/nulzo/tier-router/internal/tokenizer"
	"github.com/nulzo/tier-router/pkg/api"
	"go.uber.org/zap"
)

// Usage outcomes reported to the recorder.
const (
	StatusCompleted = "completed"
	StatusTimedOut  = "timed_out"
	StatusFailed    = "failed"
)

// UsageRecord describes one finished request for cost tracking.
type UsageRecord struct {
	ID               string
	Tier             Tier
	Model            string
	Provider         string
	Stream           bool
	Fallback         bool
	Status           string
	Error            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	TTFT             time.Duration
	CreatedAt        time.Time
}

// UsageRecorder receives a record per finished request. Implementations
// must not block; the routing path never waits on them.
type UsageRecorder interface {
	Record(rec UsageRecord)
}

type UsageRecorderFunc func(rec UsageRecord)

func (f UsageRecorderFunc) Record(rec UsageRecord) { f(rec) }

// ProviderStatus is the public view of one registered adapter.
type ProviderStatus struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Service is the entry point used by the HTTP layer.
type Service interface {
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, Decision, error)
	StreamChat(ctx context.Context, req *api.ChatRequest) (*Session, error)
	Classify(req *api.ChatRequest) Tier
	Catalog() *Catalog
	Chains() map[string][]string
	Providers() []ProviderStatus
}

// Options wires a Service. Router is required; everything else has a
// usable zero value.
type Options struct {
	Logger        *zap.Logger
	Classifier    Classifier
	Router        *Router
	InputFilters  guardrail.Chain
	OutputFilters guardrail.Chain
	Recorder      UsageRecorder
	Counter       *tokenizer.Counter
	Catalog       *Catalog
	Orchestrator  []OrchestratorOption
}

type service struct {
	logger        *zap.Logger
	classifier    Classifier
	router        *Router
	orchestrator  *Orchestrator
	inputFilters  guardrail.Chain
	outputFilters guardrail.Chain
	recorder      UsageRecorder
	counter       *tokenizer.Counter
	catalog       *Catalog
}

func NewService(opts Options) Service {
	s := &service{
		logger:        opts.Logger,
		classifier:    opts.Classifier,
		router:        opts.Router,
		inputFilters:  opts.InputFilters,
		outputFilters: opts.OutputFilters,
		recorder:      opts.Recorder,
		counter:       opts.Counter,
		catalog:       opts.Catalog,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.classifier == nil {
		s.classifier = NewHeuristicClassifier(config.ClassifierConfig{})
	}
	if s.recorder == nil {
		s.recorder = UsageRecorderFunc(func(UsageRecord) {})
	}
	if s.counter == nil {
		s.counter = tokenizer.NewCounter()
	}
	if s.catalog == nil {
		s.catalog = NewCatalog(nil)
	}

	orchOpts := append([]OrchestratorOption{WithSessionObserver(s.recordSession)}, opts.Orchestrator...)
	s.orchestrator = NewOrchestrator(ClassifierFunc(s.Classify), s.router, s.logger, orchOpts...)
	return s
}

func (s *service) Classify(req *api.ChatRequest) Tier {
	tier := s.classifier.Classify(req)
	if !tier.Valid() {
		s.logger.Error("Classifier returned an invalid tier, using BALANCED", zap.Int("tier", int(tier)))
		return TierBalanced
	}
	return tier
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, Decision, error) {
	clean, err := s.sanitize(req)
	if err != nil {
		return nil, Decision{}, err
	}

	tier := s.Classify(clean)
	metrics.Classifications.WithLabelValues(tier.String()).Inc()

	start := time.Now()
	resp, decision := s.router.Route(ctx, clean, tier)

	if err := s.filterOutput(resp); err != nil {
		return nil, decision, err
	}

	rec := UsageRecord{
		ID:        resp.ID,
		Tier:      tier,
		Model:     decision.Model,
		Provider:  decision.Provider,
		Fallback:  decision.Fallback,
		Status:    StatusCompleted,
		Latency:   time.Since(start),
		CreatedAt: time.Now(),
	}
	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
	}
	s.recorder.Record(rec)

	return resp, decision, nil
}

func (s *service) StreamChat(ctx context.Context, req *api.ChatRequest) (*Session, error) {
	clean, err := s.sanitize(req)
	if err != nil {
		return nil, err
	}

	session, err := s.orchestrator.Start(ctx, clean)
	if errors.Is(err, ErrTooManySessions) {
		return nil, api.NewError(http.StatusTooManyRequests, api.RateLimitType,
			"Too many concurrent streaming requests, retry shortly",
			api.WithCode("too_many_sessions"), api.WithLog(err))
	}
	return session, err
}

func (s *service) Catalog() *Catalog { return s.catalog }

func (s *service) Chains() map[string][]string { return s.router.Chains().All() }

func (s *service) Providers() []ProviderStatus {
	providers := s.router.Registry().Providers()
	out := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		st := ProviderStatus{Name: p.Name(), Type: p.Type(), Enabled: p.Enabled()}
		if r, ok := p.(interface{ DisabledReason() string }); ok {
			st.Reason = r.DisabledReason()
		}
		out = append(out, st)
	}
	return out
}

// sanitize runs the input filters over a copy of the request so the
// caller's messages are left untouched.
func (s *service) sanitize(req *api.ChatRequest) (*api.ChatRequest, error) {
	clean := req.Clone()
	clean.ApplyDefaults()
	if len(s.inputFilters) == 0 {
		return clean, nil
	}
	for i := range clean.Messages {
		text, err := s.inputFilters.Apply(clean.Messages[i].Content)
		if err != nil {
			return nil, rejection(err)
		}
		clean.Messages[i].Content = text
	}
	return clean, nil
}

func (s *service) filterOutput(resp *api.ChatResponse) error {
	if len(s.outputFilters) == 0 {
		return nil
	}
	for i := range resp.Choices {
		msg := resp.Choices[i].Message
		if msg == nil {
			continue
		}
		text, err := s.outputFilters.Apply(msg.Content)
		if err != nil {
			return rejection(err)
		}
		msg.Content = text
	}
	return nil
}

func rejection(err error) error {
	if errors.Is(err, guardrail.ErrRejected) {
		return api.ContentRejected("Request content was rejected by moderation", err)
	}
	return api.InternalError("Content filter failed", err)
}

// recordSession turns a finished streaming session into a usage record,
// estimating token counts the upstream did not report.
func (s *service) recordSession(sum SessionSummary) {
	rec := UsageRecord{
		ID:        sum.ID,
		Tier:      sum.Tier,
		Model:     sum.Decision.Model,
		Provider:  sum.Decision.Provider,
		Stream:    true,
		Fallback:  sum.Decision.Fallback,
		Latency:   sum.Duration,
		TTFT:      sum.TTFT,
		CreatedAt: time.Now(),
	}

	switch sum.State {
	case StateCompleted:
		rec.Status = StatusCompleted
	case StateTimedOut:
		rec.Status = StatusTimedOut
	default:
		rec.Status = StatusFailed
	}
	if sum.Err != nil {
		rec.Error = sum.Err.Error()
	}

	if sum.Usage != nil {
		rec.PromptTokens = sum.Usage.PromptTokens
		rec.CompletionTokens = sum.Usage.CompletionTokens
	}
	if rec.PromptTokens == 0 && sum.Request != nil {
		rec.PromptTokens = s.counter.CountMessages(rec.Model, sum.Request.Messages)
	}
	if rec.CompletionTokens == 0 && sum.Content != "" {
		rec.CompletionTokens = s.counter.CountText(rec.Model, sum.Content)
	}

	s.recorder.Record(rec)
}
