package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nulzo/tier-router/pkg/api"
)

var (
	ErrSessionTimeout  = errors.New("stream session timed out waiting for the next chunk")
	ErrTooManySessions = errors.New("too many concurrent streaming sessions")
	errProducerExited  = errors.New("stream producer exited without a terminal event")
)

// SessionState is the lifecycle of one streaming request. Completed,
// TimedOut and Failed are final.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("SessionState(%d)", int32(s))
}

func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateFailed
}

// Event is one item on a session's channel. Exactly one of the fields is set.
// Done is the end-of-stream control event; Err is the failure marker.
type Event struct {
	Chunk *api.ChatResponse
	Done  bool
	Err   error
}

// SessionSummary is a snapshot taken when a session reaches a final state.
type SessionSummary struct {
	ID       string
	Request  *api.ChatRequest
	Tier     Tier
	Decision Decision
	State    SessionState
	Err      error
	Content  string
	Usage    *api.Usage
	Chunks   int
	Started  time.Time
	Duration time.Duration
	TTFT     time.Duration
}

// Session is a single streaming request. The producer goroutine writes to
// produced; the pump goroutine is the only writer of events and the only
// one that closes it. Both channels are unbuffered, so at most one event
// is in flight between producer and consumer.
type Session struct {
	id      string
	req     *api.ChatRequest
	started time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	produced chan Event
	events   chan Event

	state atomic.Int32

	mu       sync.Mutex
	tier     Tier
	decision Decision
	err      error
	content  strings.Builder
	usage    *api.Usage
	chunks   int
	ttft     time.Duration
	finished time.Time
}

func newSession(ctx context.Context, req *api.ChatRequest) *Session {
	ctx, cancel := context.WithCancelCause(ctx)
	s := &Session{
		id:       api.NewResponseID(),
		req:      req,
		started:  time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		produced: make(chan Event),
		events:   make(chan Event),
	}
	s.state.Store(int32(StateCreated))
	return s
}

func (s *Session) ID() string { return s.id }

// Events is closed once the session reaches a final state. A normal end is
// signalled by a Done event before the close; a failure by an Err event.
// A timeout or a consumer cancel closes the channel without either.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Tier is valid once the first event has been received.
func (s *Session) Tier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Err reports why the session failed or timed out. It is nil while running
// and after a normal completion.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the session. Pending and future sends from the producer
// become no-ops and the session ends as Failed with context.Canceled.
func (s *Session) Close() {
	s.cancel(context.Canceled)
}

func (s *Session) Summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := SessionSummary{
		ID:       s.id,
		Request:  s.req,
		Tier:     s.tier,
		Decision: s.decision,
		State:    s.State(),
		Err:      s.err,
		Content:  s.content.String(),
		Chunks:   s.chunks,
		Started:  s.started,
		TTFT:     s.ttft,
	}
	if s.usage != nil {
		u := *s.usage
		sum.Usage = &u
	}
	if !s.finished.IsZero() {
		sum.Duration = s.finished.Sub(s.started)
	}
	return sum
}

// emit hands an event to the pump. After the session context is done it
// returns the cancellation cause instead of blocking.
func (s *Session) emit(ev Event) error {
	select {
	case s.produced <- ev:
		return nil
	case <-s.ctx.Done():
		return context.Cause(s.ctx)
	}
}

func (s *Session) setTier(t Tier) {
	s.mu.Lock()
	s.tier = t
	s.mu.Unlock()
}

func (s *Session) setDecision(d Decision) {
	s.mu.Lock()
	s.decision = d
	s.mu.Unlock()
}

func (s *Session) record(chunk *api.ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks == 0 {
		s.ttft = time.Since(s.started)
	}
	s.chunks++
	s.content.WriteString(chunk.Content())
	if chunk.Usage != nil {
		u := *chunk.Usage
		s.usage = &u
	}
}

// transition moves a running session into a final state exactly once.
func (s *Session) transition(to SessionState, err error) bool {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(to)) {
		return false
	}
	s.mu.Lock()
	s.err = err
	s.finished = time.Now()
	s.mu.Unlock()
	return true
}
