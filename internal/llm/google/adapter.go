package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/httpclient"
	"github.com/nulzo/tier-router/internal/llm"
	"github.com/nulzo/tier-router/pkg/api"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var defaultPrefixes = []string{"gemini-"}

func init() {
	llm.Register(string(llm.Google), NewAdapter)
}

type Adapter struct {
	llm.Base
}

func NewAdapter(cfg config.ProviderConfig) (llm.Provider, error) {
	return &Adapter{Base: llm.NewBase(cfg, defaultBaseURL, defaultPrefixes, true)}, nil
}

func (a *Adapter) Type() string { return string(llm.Google) }

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type GeminiRequest struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type GeminiResponse struct {
	Candidates    []GeminiCandidate `json:"candidates"`
	UsageMetadata UsageMetadata     `json:"usageMetadata"`
}

// Shape converts a chat request to the Gemini contents layout. Assistant
// turns become "model" turns and system messages move to systemInstruction.
func Shape(req *api.ChatRequest) GeminiRequest {
	gr := GeminiRequest{
		GenerationConfig: &GenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopSequences(),
		},
	}
	var system []GeminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case api.System:
			system = append(system, GeminiPart{Text: m.Content})
		case api.Assistant:
			gr.Contents = append(gr.Contents, GeminiContent{Role: "model", Parts: []GeminiPart{{Text: m.Content}}})
		default:
			gr.Contents = append(gr.Contents, GeminiContent{Role: "user", Parts: []GeminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		gr.SystemInstruction = &GeminiContent{Parts: system}
	}
	return gr
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, model string) (*api.ChatResponse, error) {
	if !a.Enabled() {
		return nil, llm.ErrProviderDisabled
	}

	endpoint := a.URL(fmt.Sprintf("models/%s:generateContent", url.PathEscape(model)))
	headers := map[string]string{"x-goog-api-key": a.Config.APIKey}

	var gResp GeminiResponse
	if err := httpclient.SendRequest(ctx, a.Client, http.MethodPost, endpoint, headers, Shape(req), &gResp); err != nil {
		return nil, llm.WrapUpstream(a.Name(), err)
	}
	if len(gResp.Candidates) == 0 {
		return nil, llm.WrapUpstream(a.Name(), llm.ErrEmptyResponse)
	}

	var text strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return api.NewChatResponse(model, text.String(),
		api.NewUsage(gResp.UsageMetadata.PromptTokenCount, gResp.UsageMetadata.CandidatesTokenCount)), nil
}

// Stream is served by a single generateContent call: the whole answer goes
// out as one fragment followed by the terminal chunk.
func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, model string, onChunk llm.ChunkFunc) error {
	resp, err := a.Chat(ctx, req, model)
	if err != nil {
		return err
	}

	w := llm.NewStreamWriter(model, onChunk)
	if err := w.Delta(resp.Content()); err != nil {
		return err
	}
	return w.Finish(api.FinishStop, resp.Usage)
}
