package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ObjectCompletion = "chat.completion"
	ObjectChunk      = "chat.completion.chunk"

	FinishStop = "stop"
)

type ChatResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"` // "chat.completion" or "chat.completion.chunk"
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"` // For non-streaming
	Delta        *ChatMessage `json:"delta,omitempty"`   // For streaming
	FinishReason *string      `json:"finish_reason"`
}

// Usage is only built through NewUsage so TotalTokens always equals the sum
// of the other two counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewUsage(prompt, completion int) Usage {
	if prompt < 0 {
		prompt = 0
	}
	if completion < 0 {
		completion = 0
	}
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// Valid reports whether the total matches the sum of its parts.
func (u Usage) Valid() bool {
	return u.TotalTokens == u.PromptTokens+u.CompletionTokens
}

func NewResponseID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}

// NewChatResponse builds a complete, non-streaming response with a single
// assistant choice finished with "stop".
func NewChatResponse(model, content string, usage Usage) *ChatResponse {
	return &ChatResponse{
		ID:      NewResponseID(),
		Object:  ObjectCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      &ChatMessage{Role: Assistant, Content: content},
			FinishReason: FinishReason(FinishStop),
		}},
		Usage: &usage,
	}
}

// NewChunk builds one streaming fragment. A non-empty finish marks it as the
// terminal fragment of its stream.
func NewChunk(id, model, content, finish string) *ChatResponse {
	if id == "" {
		id = NewResponseID()
	}
	choice := Choice{
		Index: 0,
		Delta: &ChatMessage{Role: Assistant, Content: content},
	}
	if finish != "" {
		choice.FinishReason = FinishReason(finish)
	}
	return &ChatResponse{
		ID:      id,
		Object:  ObjectChunk,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{choice},
	}
}

func FinishReason(reason string) *string {
	return &reason
}

// Content returns the text of the first choice, whichever of message or
// delta it carries.
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	c := r.Choices[0]
	switch {
	case c.Message != nil:
		return c.Message.Content
	case c.Delta != nil:
		return c.Delta.Content
	}
	return ""
}

// IsTerminal reports whether any choice carries a finish reason.
func (r *ChatResponse) IsTerminal() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Choices {
		if c.FinishReason != nil && *c.FinishReason != "" {
			return true
		}
	}
	return false
}
