package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/httpclient"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
)

const defaultBaseURL = "http://localhost:11434"

var defaultPrefixes = []string{"llama", "mistral"}

func init() {
	llm.Register(string(llm.Ollama), NewAdapter)
}

// stripThinkingKey in the provider config map removes <think> blocks that
// reasoning models emit before their answer.
const stripThinkingKey = "strip_thinking"

// Adapter talks to the native Ollama chat API. No key is needed; the
// provider's config map may alias chain names to local tags, for example
// "mistral-7b": "mistral:7b".
type Adapter struct {
	llm.Base
	stripThinking bool
}

func NewAdapter(cfg config.ProviderConfig) (llm.Provider, error) {
	return &Adapter{
		Base:          llm.NewBase(cfg, defaultBaseURL, defaultPrefixes, false),
		stripThinking: strings.EqualFold(cfg.Config[stripThinkingKey], "true"),
	}, nil
}

func (a *Adapter) Type() string { return string(llm.Ollama) }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

type Response struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

func (a *Adapter) upstreamModel(model string) string {
	if tag, ok := a.Config.Config[model]; ok && tag != "" {
		return tag
	}
	return model
}

func (a *Adapter) toOllamaReq(req *api.ChatRequest, model string, stream bool) Request {
	or := Request{
		Model:  a.upstreamModel(model),
		Stream: stream,
		Options: &Options{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
			Stop:        req.StopSequences(),
		},
	}
	for _, m := range req.Messages {
		role := string(m.Role)
		if m.Role == api.Function {
			role = "tool"
		}
		or.Messages = append(or.Messages, Message{Role: role, Content: m.Content})
	}
	return or
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	if !a.Enabled() {
		return nil, llm.ErrProviderDisabled
	}

	var oResp Response
	if err := httpclient.SendRequest(ctx, a.Client, http.MethodPost, a.URL("api/chat"), nil, a.toOllamaReq(req, model, false), &oResp); err != nil {
		return nil, llm.WrapUpstream(a.Name(), err)
	}
	if oResp.Error != "" {
		return nil, llm.WrapUpstream(a.Name(), &httpclient.UpstreamError{StatusCode: http.StatusBadGateway, Body: []byte(oResp.Error), URL: a.URL("api/chat")})
	}

	content := oResp.Message.Content
	if a.stripThinking {
		content = strings.TrimSpace(stripThinking(content))
	}
	return api.NewChatResponse(model, content, api.NewUsage(oResp.PromptEvalCount, oResp.EvalCount)), nil
}

// Stream reads newline-delimited JSON objects; the one with done=true
// carries the token counts.
func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	if !a.Enabled() {
		return llm.ErrProviderDisabled
	}

	w := llm.NewStreamWriter(model, onChunk)
	var usage *api.Usage
	var filter *thinkFilter
	if a.stripThinking {
		filter = &thinkFilter{}
	}

	err := httpclient.StreamRequest(ctx, a.StreamClient, http.MethodPost, a.URL("api/chat"), nil, a.toOllamaReq(req, model, true), func(line string) error {
		var part Response
		if err := json.Unmarshal([]byte(line), &part); err != nil {
			return nil
		}
		if part.Error != "" {
			return &httpclient.UpstreamError{StatusCode: http.StatusBadGateway, Body: []byte(part.Error), URL: a.URL("api/chat")}
		}
		delta := part.Message.Content
		if filter != nil {
			delta = filter.Feed(delta)
		}
		if err := w.Delta(delta); err != nil {
			return err
		}
		if part.Done {
			u := api.NewUsage(part.PromptEvalCount, part.EvalCount)
			usage = &u
			return httpclient.ErrStreamDone
		}
		return nil
	})
	if err != nil {
		return llm.WrapUpstream(a.Name(), err)
	}
	if filter != nil {
		if err := w.Delta(filter.Flush()); err != nil {
			return err
		}
	}

	return w.Finish(api.FinishStop, usage)
}
