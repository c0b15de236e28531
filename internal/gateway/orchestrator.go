package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nulzo/tier-router/internal/metrics"
	"github.com/nulzo/tier-router/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultStreamTimeout = 60 * time.Second
	DefaultMaxSessions   = 1024
)

type OrchestratorOption func(*Orchestrator)

// WithStreamTimeout sets the inactivity bound between two produced events.
func WithStreamTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxSessions caps the number of concurrently running sessions.
func WithMaxSessions(n int64) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSessions = n
		}
	}
}

// WithSessionObserver registers a callback run once per session after it
// reaches a final state. It runs on the session's pump goroutine.
func WithSessionObserver(fn func(SessionSummary)) OrchestratorOption {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// Orchestrator runs classification and streaming routing off the request
// goroutine and republishes the output as an ordered event sequence.
type Orchestrator struct {
	classifier  Classifier
	router      *Router
	logger      *zap.Logger
	timeout     time.Duration
	maxSessions int64
	sem         *semaphore.Weighted
	observers   []func(SessionSummary)
}

func NewOrchestrator(classifier Classifier, router *Router, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		classifier:  classifier,
		router:      router,
		logger:      logger.Named("orchestrator"),
		timeout:     DefaultStreamTimeout,
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sem = semaphore.NewWeighted(o.maxSessions)
	return o
}

// Start admits a new session and returns immediately. It fails only with
// ErrTooManySessions; every other problem surfaces through the session.
// Cancelling ctx ends the session as Failed.
func (o *Orchestrator) Start(ctx context.Context, req *api.ChatRequest) (*Session, error) {
	if !o.sem.TryAcquire(1) {
		metrics.RejectedSessions.Inc()
		return nil, ErrTooManySessions
	}

	s := newSession(ctx, req)
	s.state.Store(int32(StateRunning))
	metrics.ActiveSessions.Inc()

	go o.produce(s)
	go o.pump(s)

	return s, nil
}

// produce is the background task: classify, then route with streaming.
func (o *Orchestrator) produce(s *Session) {
	defer close(s.produced)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Stream producer panicked", zap.String("session", s.id), zap.Any("panic", r))
			_ = s.emit(Event{Err: fmt.Errorf("stream producer panic: %v", r)})
		}
	}()

	tier := o.classifier.Classify(s.req)
	if !tier.Valid() {
		o.logger.Error("Classifier returned an invalid tier, using BALANCED",
			zap.String("session", s.id), zap.Int("tier", int(tier)))
		tier = TierBalanced
	}
	s.setTier(tier)
	metrics.Classifications.WithLabelValues(tier.String()).Inc()

	decision, err := o.router.RouteStreaming(s.ctx, s.req, tier, func(chunk *api.ChatResponse) error {
		return s.emit(Event{Chunk: chunk})
	})
	s.setDecision(decision)

	if err != nil {
		_ = s.emit(Event{Err: err})
		return
	}
	_ = s.emit(Event{Done: true})
}

// pump forwards produced events to the consumer, enforces the inactivity
// bound and owns the final transition. The bound only runs while the pump
// waits on the producer, never while a slow consumer holds a delivery.
// Chunks are re-stamped with the session id, the id usage is recorded under.
func (o *Orchestrator) pump(s *Session) {
	defer close(s.events)
	defer func() {
		s.cancel(context.Canceled)
		o.sem.Release(1)
		metrics.ActiveSessions.Dec()
		metrics.SessionOutcomes.WithLabelValues(s.State().String()).Inc()
		o.observe(s)
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			o.fail(s, context.Cause(s.ctx))
			return

		case <-timer.C:
			s.cancel(ErrSessionTimeout)
			if s.transition(StateTimedOut, ErrSessionTimeout) {
				o.logger.Warn("Stream session timed out",
					zap.String("session", s.id),
					zap.Duration("timeout", o.timeout),
				)
			}
			return

		case ev, ok := <-s.produced:
			if !ok {
				o.fail(s, errProducerExited)
				return
			}
			timer.Stop()

			if ev.Chunk != nil {
				chunk := *ev.Chunk
				chunk.ID = s.id
				ev.Chunk = &chunk
				s.record(ev.Chunk)
			}

			select {
			case s.events <- ev:
			case <-s.ctx.Done():
				o.fail(s, context.Cause(s.ctx))
				return
			}

			switch {
			case ev.Done:
				s.transition(StateCompleted, nil)
				return
			case ev.Err != nil:
				o.fail(s, ev.Err)
				return
			}
			timer.Reset(o.timeout)
		}
	}
}

func (o *Orchestrator) fail(s *Session, err error) {
	if err == nil {
		err = context.Canceled
	}
	if !s.transition(StateFailed, err) {
		return
	}
	if errors.Is(err, context.Canceled) {
		o.logger.Debug("Stream session cancelled by consumer", zap.String("session", s.id))
		return
	}
	o.logger.Error("Stream session failed", zap.String("session", s.id), zap.Error(err))
}

func (o *Orchestrator) observe(s *Session) {
	if len(o.observers) == 0 {
		return
	}
	sum := s.Summary()
	for _, fn := range o.observers {
		fn(sum)
	}
}
