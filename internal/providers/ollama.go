package providers

import (
	"context"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

const (
	ollamaName         = "ollama"
	defaultOllamaModel = "llama3.1"
)

// Ollama is the local-inference adapter. No authentication; the daemon is
// expected on localhost unless BaseURL says otherwise.
type Ollama struct {
	client *client
	cfg    ClientConfig
}

func NewOllama(cfg ClientConfig, logger *logging.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultOllamaModel
	}
	return &Ollama{
		client: newClient(cfg, logger),
		cfg:    cfg,
	}
}

func (o *Ollama) Name() string { return ollamaName }

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (o *Ollama) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, core.ErrValidation("EMPTY_REQUEST", "ollama: no messages")
	}

	body := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
	}
	if body.Model == "" {
		body.Model = o.cfg.DefaultModel
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.Options = &ollamaOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		}
	}

	var resp ollamaResponse
	err := o.client.postJSON(ctx, ollamaName, "/api/chat", nil, body, &resp)
	if err != nil {
		return nil, err
	}

	return &core.CompletionResponse{
		Content: resp.Message.Content,
		Model:   resp.Model,
		Usage: core.Usage{
			TokensIn:  resp.PromptEvalCount,
			TokensOut: resp.EvalCount,
		},
	}, nil
}

// HealthCheck probes the local tag listing, which answers as soon as the
// daemon is up.
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	return o.client.getOK(ctx, "/api/tags", nil)
}
