package providers

import (
	"context"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

const (
	openaiName      = "openai"
	defaultGPTModel = "gpt-4o"
)

// OpenAI is the chat-completions adapter.
type OpenAI struct {
	client *client
	cfg    ClientConfig
}

// NewOpenAI creates an OpenAI adapter. BaseURL defaults to the public API
// endpoint; override it for compatible gateways.
func NewOpenAI(cfg ClientConfig, logger *logging.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultGPTModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &OpenAI{
		client: newClient(cfg, logger),
		cfg:    cfg,
	}
}

func (o *OpenAI) Name() string { return openaiName }

type openaiRequest struct {
	Model       string         `json:"model"`
	Messages    []core.Message `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete calls the chat completions API. The wire format accepts system
// messages inline, so the conversation passes through unchanged.
func (o *OpenAI) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, core.ErrValidation("EMPTY_REQUEST", "openai: no messages")
	}

	body := openaiRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = o.cfg.DefaultModel
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = o.cfg.MaxTokens
	}

	var resp openaiResponse
	err := o.client.postJSON(ctx, openaiName, "/v1/chat/completions", o.headers(), body, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, core.ErrProvider("EMPTY_RESPONSE", "openai: response has no choices", true)
	}

	return &core.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: core.Usage{
			TokensIn:  resp.Usage.PromptTokens,
			TokensOut: resp.Usage.CompletionTokens,
		},
	}, nil
}

// HealthCheck probes the models listing endpoint.
func (o *OpenAI) HealthCheck(ctx context.Context) bool {
	return o.client.getOK(ctx, "/v1/models", o.headers())
}

func (o *OpenAI) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.cfg.APIKey,
	}
}
