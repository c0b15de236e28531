package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/internal/metrics"
	"github.com/nulzo/tier-router/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	placeholderTemplate       = "This is a mock response from %s. Configure API keys to use real LLM providers."
	streamPlaceholderTemplate = "This is a mock streaming response from %s. Configure API keys to use real LLM providers."

	placeholderPromptTokens     = 10
	placeholderCompletionTokens = 20

	tracerName = "github.com/nulzo/tier-router/internal/gateway"
)

// Decision describes how a request was served.
type Decision struct {
	Tier     Tier
	Model    string
	Provider string
	Attempts int
	// Fallback is set when every candidate failed and the placeholder was returned.
	Fallback bool
}

type RouterOption func(*Router)

// WithFallbackChunkDelay spaces out the words of the streamed placeholder.
func WithFallbackChunkDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.chunkDelay = d }
}

func WithTracer(t trace.Tracer) RouterOption {
	return func(r *Router) { r.tracer = t }
}

// Router walks a tier's model chain in order against the adapter registry.
// Failover is strictly sequential: a candidate is only tried after the
// previous one has failed.
type Router struct {
	chains     *Chains
	registry   *llm.Registry
	logger     *zap.Logger
	tracer     trace.Tracer
	chunkDelay time.Duration
}

func NewRouter(chains *Chains, registry *llm.Registry, logger *zap.Logger, opts ...RouterOption) *Router {
	r := &Router{
		chains:     chains,
		registry:   registry,
		logger:     logger.Named("router"),
		tracer:     otel.Tracer(tracerName),
		chunkDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Chains() *Chains { return r.chains }

func (r *Router) Registry() *llm.Registry { return r.registry }

// Route returns the first successful candidate's response. It never fails:
// once the chain is exhausted a placeholder built from the first candidate
// is returned instead.
func (r *Router) Route(ctx context.Context, req *api.ChatRequest, tier Tier) (*api.ChatResponse, Decision) {
	chain := r.chains.For(tier)
	decision := Decision{Tier: tier}

	for _, model := range chain {
		if ctx.Err() != nil {
			break
		}

		provider, ok := r.registry.Lookup(model)
		if !ok {
			r.skip(tier, model, "no enabled provider supports model")
			continue
		}

		decision.Attempts++
		resp, err := r.attemptChat(ctx, provider, req, tier, model)
		if err != nil {
			r.logger.Warn("Candidate failed, trying next",
				zap.String("tier", tier.String()),
				zap.String("model", model),
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)
			continue
		}

		decision.Model = model
		decision.Provider = provider.Name()
		return resp, decision
	}

	r.logger.Warn("Model chain exhausted, returning placeholder",
		zap.String("tier", tier.String()),
		zap.Strings("chain", chain),
	)
	metrics.ChainExhausted.WithLabelValues(tier.String(), "sync").Inc()

	decision.Model = chain[0]
	decision.Fallback = true
	return placeholderResponse(chain[0]), decision
}

func (r *Router) attemptChat(ctx context.Context, p llm.Provider, req *api.ChatRequest, tier Tier, model string) (*api.ChatResponse, error) {
	ctx, span := r.startAttempt(ctx, p, tier, model, "sync")
	defer span.End()

	start := time.Now()
	resp, err := p.Chat(ctx, req, model)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		r.endAttempt(span, tier, model, p, err)
		return nil, err
	}

	if resp.Model == "" {
		resp.Model = model
	}
	if resp.Usage == nil || !resp.Usage.Valid() {
		var u api.Usage
		if resp.Usage != nil {
			u = api.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}
		resp.Usage = &u
	}

	metrics.UpstreamLatency.WithLabelValues(p.Name(), "sync").Observe(time.Since(start).Seconds())
	r.endAttempt(span, tier, model, p, nil)
	return resp, nil
}

// RouteStreaming follows the same walk as Route but delivers fragments to
// onChunk in production order. Exactly one terminal chunk reaches onChunk
// and it is always the last one.
//
// A candidate that fails before delivering anything is skipped like in
// Route. A failure after the first delivered chunk, or an error returned by
// onChunk itself, ends the walk and is returned so the caller never sees
// two interleaved answers.
func (r *Router) RouteStreaming(ctx context.Context, req *api.ChatRequest, tier Tier, onChunk llm.ChunkFunc) (Decision, error) {
	chain := r.chains.For(tier)
	decision := Decision{Tier: tier}

	for _, model := range chain {
		if err := ctx.Err(); err != nil {
			return decision, err
		}

		provider, ok := r.registry.Lookup(model)
		if !ok {
			r.skip(tier, model, "no enabled provider supports model")
			continue
		}

		decision.Attempts++
		guard := &streamGuard{onChunk: onChunk, model: model}
		err := r.attemptStream(ctx, provider, req, tier, model, guard)

		switch {
		case guard.consumerErr != nil:
			decision.Model = model
			decision.Provider = provider.Name()
			return decision, guard.consumerErr
		case err == nil:
			decision.Model = model
			decision.Provider = provider.Name()
			return decision, guard.finish()
		case guard.delivered > 0:
			decision.Model = model
			decision.Provider = provider.Name()
			return decision, fmt.Errorf("stream from %s failed after %d chunks: %w", provider.Name(), guard.delivered, err)
		}

		r.logger.Warn("Streaming candidate failed, trying next",
			zap.String("tier", tier.String()),
			zap.String("model", model),
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}

	r.logger.Warn("Model chain exhausted, streaming placeholder",
		zap.String("tier", tier.String()),
		zap.Strings("chain", chain),
	)
	metrics.ChainExhausted.WithLabelValues(tier.String(), "stream").Inc()

	decision.Model = chain[0]
	decision.Fallback = true
	return decision, r.streamPlaceholder(ctx, chain[0], onChunk)
}

func (r *Router) attemptStream(ctx context.Context, p llm.Provider, req *api.ChatRequest, tier Tier, model string, guard *streamGuard) error {
	ctx, span := r.startAttempt(ctx, p, tier, model, "stream")
	defer span.End()

	start := time.Now()
	err := p.Stream(ctx, req, model, guard.deliver)
	if guard.consumerErr != nil {
		err = guard.consumerErr
	}
	span.SetAttributes(attribute.Int("router.chunks", guard.delivered))
	if err != nil {
		r.endAttempt(span, tier, model, p, err)
		return err
	}

	metrics.UpstreamLatency.WithLabelValues(p.Name(), "stream").Observe(time.Since(start).Seconds())
	r.endAttempt(span, tier, model, p, nil)
	return nil
}

// streamPlaceholder emits the placeholder text word by word followed by an
// empty terminal chunk.
func (r *Router) streamPlaceholder(ctx context.Context, model string, onChunk llm.ChunkFunc) error {
	id := api.NewResponseID()
	words := strings.Fields(fmt.Sprintf(streamPlaceholderTemplate, model))

	var timer *time.Timer
	if r.chunkDelay > 0 {
		timer = time.NewTimer(r.chunkDelay)
		defer timer.Stop()
	}

	for _, word := range words {
		if err := onChunk(api.NewChunk(id, model, word+" ", "")); err != nil {
			return err
		}
		if timer == nil {
			continue
		}
		timer.Reset(r.chunkDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	final := api.NewChunk(id, model, "", api.FinishStop)
	usage := api.NewUsage(placeholderPromptTokens, placeholderCompletionTokens)
	final.Usage = &usage
	return onChunk(final)
}

func (r *Router) skip(tier Tier, model, reason string) {
	r.logger.Warn("Skipping candidate",
		zap.String("tier", tier.String()),
		zap.String("model", model),
		zap.String("reason", reason),
	)
	metrics.RouteAttempts.WithLabelValues(tier.String(), model, "", "no_provider").Inc()
}

func (r *Router) startAttempt(ctx context.Context, p llm.Provider, tier Tier, model, mode string) (context.Context, trace.Span) {
	r.logger.Debug("Attempting candidate",
		zap.String("tier", tier.String()),
		zap.String("model", model),
		zap.String("provider", p.Name()),
		zap.String("mode", mode),
	)
	return r.tracer.Start(ctx, "router.attempt", trace.WithAttributes(
		attribute.String("router.tier", tier.String()),
		attribute.String("router.model", model),
		attribute.String("router.provider", p.Name()),
		attribute.String("router.mode", mode),
	))
}

func (r *Router) endAttempt(span trace.Span, tier Tier, model string, p llm.Provider, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RouteAttempts.WithLabelValues(tier.String(), model, p.Name(), outcome).Inc()
}

func placeholderResponse(model string) *api.ChatResponse {
	return api.NewChatResponse(
		model,
		fmt.Sprintf(placeholderTemplate, model),
		api.NewUsage(placeholderPromptTokens, placeholderCompletionTokens),
	)
}

// streamGuard sits between an adapter and the caller's callback. It drops
// anything after the first terminal chunk, remembers consumer errors so
// they are not mistaken for provider failures, and can synthesize a
// missing terminal chunk.
type streamGuard struct {
	onChunk     llm.ChunkFunc
	model       string
	id          string
	delivered   int
	terminated  bool
	consumerErr error
}

func (g *streamGuard) deliver(chunk *api.ChatResponse) error {
	if g.consumerErr != nil {
		return g.consumerErr
	}
	if g.terminated || chunk == nil {
		return nil
	}
	if chunk.Model == "" {
		chunk.Model = g.model
	}
	if g.id == "" {
		g.id = chunk.ID
	}
	if chunk.IsTerminal() {
		g.terminated = true
	}
	g.delivered++
	if err := g.onChunk(chunk); err != nil {
		g.consumerErr = err
		return err
	}
	return nil
}

func (g *streamGuard) finish() error {
	if g.terminated {
		return nil
	}
	if err := g.deliver(api.NewChunk(g.id, g.model, "", api.FinishStop)); err != nil {
		return err
	}
	return nil
}
