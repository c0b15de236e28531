package llm

import "github.com/nulzo/tier-router/pkg/api"

// StreamWriter turns upstream fragments into chunks sharing one id and
// model, and makes sure exactly one terminal chunk goes out.
type StreamWriter struct {
	onChunk ChunkFunc
	id      string
	model   string
	done    bool
	sent    int
}

func NewStreamWriter(model string, onChunk ChunkFunc) *StreamWriter {
	return &StreamWriter{
		onChunk: onChunk,
		id:      api.NewResponseID(),
		model:   model,
	}
}

// Delta emits a content fragment. Empty fragments and anything after the
// terminal chunk are dropped.
func (w *StreamWriter) Delta(content string) error {
	if w.done || content == "" {
		return nil
	}
	w.sent++
	return w.onChunk(api.NewChunk(w.id, w.model, content, ""))
}

// Finish emits the terminal chunk once. usage may be nil.
func (w *StreamWriter) Finish(reason string, usage *api.Usage) error {
	if w.done {
		return nil
	}
	w.done = true
	if reason == "" {
		reason = api.FinishStop
	}
	chunk := api.NewChunk(w.id, w.model, "", reason)
	if usage != nil {
		u := api.NewUsage(usage.PromptTokens, usage.CompletionTokens)
		chunk.Usage = &u
	}
	w.sent++
	return w.onChunk(chunk)
}

// Done reports whether the terminal chunk was emitted.
func (w *StreamWriter) Done() bool { return w.done }

// Sent counts the chunks handed to the callback so far.
func (w *StreamWriter) Sent() int { return w.sent }
