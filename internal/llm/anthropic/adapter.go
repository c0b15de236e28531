package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/httpclient"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultVersion   = "2023-06-01"
	defaultMaxTokens = 4096
)

var defaultPrefixes = []string{"claude-"}

func init() {
	llm.Register(string(llm.Anthropic), NewAdapter)
}

type Adapter struct {
	llm.Base
}

func NewAdapter(cfg config.ProviderConfig) (llm.Provider, error) {
	return &Adapter{Base: llm.NewBase(cfg, defaultBaseURL, defaultPrefixes, true)}, nil
}

func (a *Adapter) Type() string { return string(llm.Anthropic) }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type Response struct {
	ID         string    `json:"id"`
	Content    []Content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
	Usage      Usage     `json:"usage"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type StreamEvent struct {
	Type    string   `json:"type"`
	Delta   *Delta   `json:"delta,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`
	Message *struct {
		Usage Usage `json:"usage"`
	} `json:"message,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Delta struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
}

// toAnthropicReq folds system messages into the top-level system prompt.
// Anthropic temperature tops out at 1.
func toAnthropicReq(req *api.ChatRequest, model string, stream bool) Request {
	ar := Request{
		Model:         model,
		MaxTokens:     req.MaxTokens,
		TopP:          req.TopP,
		StopSequences: req.StopSequences(),
		Stream:        stream,
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = defaultMaxTokens
	}
	if req.Temperature != nil {
		t := *req.Temperature
		if t > 1 {
			t = 1
		}
		ar.Temperature = &t
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case api.System:
			system = append(system, m.Content)
		case api.User, api.Assistant:
			ar.Messages = append(ar.Messages, Message{Role: string(m.Role), Content: m.Content})
		default:
			// function results are replayed as user turns
			ar.Messages = append(ar.Messages, Message{Role: string(api.User), Content: m.Content})
		}
	}
	ar.System = strings.Join(system, "\n")
	return ar
}

func (a *Adapter) headers() map[string]string {
	headers := map[string]string{
		"x-api-key":         a.Config.APIKey,
		"anthropic-version": defaultVersion,
	}
	if v, ok := a.Config.Config["version"]; ok {
		headers["anthropic-version"] = v
	}
	return headers
}

// mapStopReason converts Anthropic stop reasons to the wire vocabulary.
func mapStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return "length"
	default:
		return api.FinishStop
	}
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	if !a.Enabled() {
		return nil, llm.ErrProviderDisabled
	}

	var anthroResp Response
	if err := httpclient.SendRequest(ctx, a.Client, http.MethodPost, a.URL("messages"), a.headers(), toAnthropicReq(req, model, false), &anthroResp); err != nil {
		return nil, llm.WrapUpstream(a.Name(), err)
	}

	var text strings.Builder
	for _, c := range anthroResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	if anthroResp.Model == "" {
		anthroResp.Model = model
	}
	resp := api.NewChatResponse(anthroResp.Model, text.String(),
		api.NewUsage(anthroResp.Usage.InputTokens, anthroResp.Usage.OutputTokens))
	resp.Choices[0].FinishReason = api.FinishReason(mapStopReason(anthroResp.StopReason))
	return resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	if !a.Enabled() {
		return llm.ErrProviderDisabled
	}

	w := llm.NewStreamWriter(model, onChunk)
	var (
		prompt, completion int
		stopReason         string
	)

	err := httpclient.StreamRequest(ctx, a.StreamClient, http.MethodPost, a.URL("messages"), a.headers(), toAnthropicReq(req, model, true), func(line string) error {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			return nil
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &event); err != nil {
			return nil
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				prompt = event.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				return w.Delta(event.Delta.Text)
			}
		case "message_delta":
			if event.Usage != nil {
				completion = event.Usage.OutputTokens
			}
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
		case "message_stop":
			return httpclient.ErrStreamDone
		case "error":
			if event.Error != nil {
				return fmt.Errorf("%s: %s", event.Error.Type, event.Error.Message)
			}
			return llm.ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return llm.WrapUpstream(a.Name(), err)
	}

	usage := api.NewUsage(prompt, completion)
	return w.Finish(mapStopReason(stopReason), &usage)
}
