package llm

import (
	"context"
	"errors"

	"github.com/nulzo/tier-router/pkg/api"
)

type ProviderName string

const (
	Ollama    ProviderName = "ollama"
	OpenAI    ProviderName = "openai"
	Anthropic ProviderName = "anthropic"
	Google    ProviderName = "google"
)

var (
	ErrProviderDisabled    = errors.New("provider is not enabled")
	ErrUnknownProviderType = errors.New("unknown provider type")
	ErrEmptyResponse       = errors.New("upstream returned no choices")
)

// ChunkFunc receives one streaming fragment. Returning an error aborts the
// stream and is propagated out of Stream.
type ChunkFunc func(chunk *api.ChatResponse) error

// Provider wraps one backend family. Implementations must be safe for
// concurrent use by multiple sessions.
type Provider interface {
	Name() string
	Type() string

	// Enabled is decided once at construction and never flips back to true.
	Enabled() bool

	// Supports is a structural match on the model name; it never touches the network.
	Supports(model string) bool

	Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error)

	// Stream delivers 1..N fragments in order through onChunk. Exactly one
	// of them carries a finish reason and it is always the last.
	Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk ChunkFunc) error
}
