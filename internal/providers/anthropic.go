package providers

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

const (
	anthropicName       = "anthropic"
	anthropicAPIVersion = "2023-06-01"
	defaultClaudeModel  = "claude-sonnet-4-20250514"
)

// Anthropic is the Claude messages-API adapter.
type Anthropic struct {
	client *client
	cfg    ClientConfig
}

// NewAnthropic creates an Anthropic adapter. BaseURL defaults to the public
// API endpoint.
func NewAnthropic(cfg ClientConfig, logger *logging.Logger) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultClaudeModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &Anthropic{
		client: newClient(cfg, logger),
		cfg:    cfg,
	}
}

func (a *Anthropic) Name() string { return anthropicName }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete calls the messages API. System messages are lifted out of the
// conversation into the top-level system field, which is where the messages
// API expects them.
func (a *Anthropic) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	if body.Model == "" {
		body.Model = a.cfg.DefaultModel
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = a.cfg.MaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")

	if len(body.Messages) == 0 {
		return nil, core.ErrValidation("EMPTY_REQUEST", "anthropic: no user or assistant messages")
	}

	var resp anthropicResponse
	err := a.client.postJSON(ctx, anthropicName, "/v1/messages", a.headers(), body, &resp)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &core.CompletionResponse{
		Content: content.String(),
		Model:   resp.Model,
		Usage: core.Usage{
			TokensIn:  resp.Usage.InputTokens,
			TokensOut: resp.Usage.OutputTokens,
		},
	}, nil
}

// HealthCheck probes the models listing endpoint.
func (a *Anthropic) HealthCheck(ctx context.Context) bool {
	return a.client.getOK(ctx, "/v1/models", a.headers())
}

func (a *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicAPIVersion,
	}
}
