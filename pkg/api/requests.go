package api

import (
	"encoding/json"
	"strings"
)

const (
	DefaultTemperature      = 1.0
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

type ChatRequest struct {
	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// optional hint, the classifier decides the actual model
	Model string `json:"model,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`

	// Sampling parameters are passed through to the upstream untouched.
	// Pointers so an absent field can be told apart from an explicit zero.
	Temperature      *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	TopP             *float64 `json:"top_p,omitempty" binding:"omitempty,gte=0,lte=1"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" binding:"omitempty,gte=-2,lte=2"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" binding:"omitempty,gte=-2,lte=2"`
	MaxTokens        int      `json:"max_tokens,omitempty" binding:"omitempty,gte=0"`

	// Can be string or []string
	Stop *Stop `json:"stop,omitempty"`

	User     string                 `json:"user,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	defaulted bool
}

type ChatMessage struct {
	Role    Role   `json:"role" binding:"required,oneof=system user assistant function"`
	Content string `json:"content" binding:"required"`
	Name    string `json:"name,omitempty"`
}

type Stop struct {
	Val []string
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &s.Val)
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	s.Val = []string{str}
	return nil
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if len(s.Val) == 1 {
		return json.Marshal(s.Val[0])
	}
	return json.Marshal(s.Val)
}

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
	Function  Role = "function"
)

// Valid reports whether r is one of the roles accepted on the wire.
func (r Role) Valid() bool {
	switch r {
	case User, Assistant, System, Function:
		return true
	}
	return false
}

// ApplyDefaults fills absent sampling parameters. It runs once per request;
// later calls are no-ops so a value is never recomputed.
func (r *ChatRequest) ApplyDefaults() {
	if r.defaulted {
		return
	}
	r.defaulted = true

	if r.Temperature == nil {
		r.Temperature = float64Ptr(DefaultTemperature)
	}
	if r.TopP == nil {
		r.TopP = float64Ptr(DefaultTopP)
	}
	if r.FrequencyPenalty == nil {
		r.FrequencyPenalty = float64Ptr(DefaultFrequencyPenalty)
	}
	if r.PresencePenalty == nil {
		r.PresencePenalty = float64Ptr(DefaultPresencePenalty)
	}
}

// ConversationText joins every message content with a single space.
func (r *ChatRequest) ConversationText() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.Content)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// LastUserMessage returns the content of the most recent user message, or
// the empty string when the conversation has none.
func (r *ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == User {
			return r.Messages[i].Content
		}
	}
	return ""
}

// StopSequences returns the stop list, or nil when none was sent.
func (r *ChatRequest) StopSequences() []string {
	if r.Stop == nil {
		return nil
	}
	return r.Stop.Val
}

// Clone returns a copy whose Messages slice can be rewritten without
// touching the caller's request.
func (r *ChatRequest) Clone() *ChatRequest {
	c := *r
	c.Messages = make([]ChatMessage, len(r.Messages))
	copy(c.Messages, r.Messages)
	return &c
}

func float64Ptr(v float64) *float64 {
	return &v
}
