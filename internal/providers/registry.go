package providers

import (
	"sort"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

// RegistryConfig selects which adapters to construct. Providers without an
// entry are absent from the registry; the dispatcher treats unknown names in
// a fallback order as a configuration error.
type RegistryConfig struct {
	Anthropic *ClientConfig
	OpenAI    *ClientConfig
	Ollama    *ClientConfig
}

// BuildRegistry constructs the closed set of providers from configuration.
// At least one provider must be configured.
func BuildRegistry(cfg RegistryConfig, logger *logging.Logger) (map[string]core.Provider, error) {
	registry := make(map[string]core.Provider)

	if cfg.Anthropic != nil {
		if cfg.Anthropic.APIKey == "" {
			return nil, core.ErrValidation("MISSING_API_KEY", "anthropic: api key is required")
		}
		registry[anthropicName] = NewAnthropic(*cfg.Anthropic, logger)
	}
	if cfg.OpenAI != nil {
		if cfg.OpenAI.APIKey == "" {
			return nil, core.ErrValidation("MISSING_API_KEY", "openai: api key is required")
		}
		registry[openaiName] = NewOpenAI(*cfg.OpenAI, logger)
	}
	if cfg.Ollama != nil {
		registry[ollamaName] = NewOllama(*cfg.Ollama, logger)
	}

	if len(registry) == 0 {
		return nil, core.ErrState(core.CodeNoProviders, "no providers configured")
	}
	return registry, nil
}

// Names returns the registered provider names in sorted order.
func Names(registry map[string]core.Provider) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
