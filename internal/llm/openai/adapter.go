package openai

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

const (
	defaultBaseURL = "https://api.openai.com/v1"
	doneMarker     = "[DONE]"
)

var defaultPrefixes = []string{"gpt-", "o1"}

func init() {
	llm.Register(string(llm.OpenAI), NewAdapter)
}

type Adapter struct {
	llm.Base
}

func NewAdapter(cfg config.ProviderConfig) (llm.Provider, error) {
	return &Adapter{Base: llm.NewBase(cfg, defaultBaseURL, defaultPrefixes, true)}, nil
}

func (a *Adapter) Type() string { return string(llm.OpenAI) }

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []api.ChatMessage `json:"messages"`
	Stream           bool              `json:"stream,omitempty"`
	StreamOptions    *streamOptions    `json:"stream_options,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64          `json:"presence_penalty,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	Stop             []string          `json:"stop,omitempty"`
	User             string            `json:"user,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

func toUpstream(req *api.ChatRequest, model string, stream bool) chatRequest {
	out := chatRequest{
		Model:            model,
		Messages:         req.Messages,
		Stream:           stream,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		MaxTokens:        req.MaxTokens,
		Stop:             req.StopSequences(),
		User:             req.User,
	}
	if stream {
		out.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return out
}

func (a *Adapter) headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + a.Config.APIKey,
	}
	if org, ok := a.Config.Config["organization"]; ok {
		headers["OpenAI-Organization"] = org
	}
	return headers
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	if !a.Enabled() {
		return nil, llm.ErrProviderDisabled
	}

	var resp api.ChatResponse
	err := httpclient.SendRequest(ctx, a.Client, http.MethodPost, a.URL("chat/completions"), a.headers(), toUpstream(req, model, false), &resp)
	if err != nil {
		return nil, llm.WrapUpstream(a.Name(), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, llm.WrapUpstream(a.Name(), llm.ErrEmptyResponse)
	}

	return normalize(&resp, model), nil
}

// normalize fills fields some compatible servers omit and rebuilds usage so
// its total is always consistent.
func normalize(resp *api.ChatResponse, model string) *api.ChatResponse {
	if resp.ID == "" {
		resp.ID = api.NewResponseID()
	}
	if resp.Model == "" {
		resp.Model = model
	}
	resp.Object = api.ObjectCompletion
	if resp.Choices[0].FinishReason == nil {
		resp.Choices[0].FinishReason = api.FinishReason(api.FinishStop)
	}
	var usage api.Usage
	if resp.Usage != nil {
		usage = api.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	resp.Usage = &usage
	return resp
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	if !a.Enabled() {
		return llm.ErrProviderDisabled
	}

	w := llm.NewStreamWriter(model, onChunk)
	var (
		usage  *api.Usage
		finish string
	)

	err := httpclient.StreamRequest(ctx, a.StreamClient, http.MethodPost, a.URL("chat/completions"), a.headers(), toUpstream(req, model, true), func(line string) error {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			return nil
		}
		data = strings.TrimSpace(data)
		if data == doneMarker {
			return httpclient.ErrStreamDone
		}

		var chunk api.ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, c := range chunk.Choices {
			if c.Delta != nil {
				if err := w.Delta(c.Delta.Content); err != nil {
					return err
				}
			}
			if c.FinishReason != nil && *c.FinishReason != "" {
				finish = *c.FinishReason
			}
		}
		return nil
	})
	if err != nil {
		return llm.WrapUpstream(a.Name(), err)
	}

	return w.Finish(finish, usage)
}
