package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/config"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/contextmgr"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/events"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/providers"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/service"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/store"
)

// runtime bundles the wired application components for a command.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.SQLiteStore
	engine *service.Engine
	health *service.HealthRegistry
	agents *config.AgentCatalog
	bus    *events.Bus
}

// buildRuntime loads configuration and wires the engine stack. The returned
// cleanup closes the store and the event bus.
func buildRuntime() (*runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	registry, err := providers.BuildRegistry(registryConfig(cfg), logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	agents, err := config.NewAgentCatalog(config.DefaultAgents()...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	health := service.NewHealthRegistry()
	dispatcher := service.NewDispatcher(&service.DispatcherConfig{
		CallTimeout: cfg.Engine.CallTimeout,
		Retry: service.NewRetryPolicy(
			service.WithMaxAttempts(cfg.Retry.MaxAttempts),
			service.WithBaseDelay(cfg.Retry.BaseDelay),
			service.WithMaxDelay(cfg.Retry.MaxDelay),
			service.WithJitter(cfg.Retry.JitterFactor),
			service.WithMultiplier(cfg.Retry.Multiplier),
		),
		RateLimits: rateLimits(cfg),
		Agents:     agents,
	}, registry, health, logger)

	bus := events.New(events.DefaultBufferSize)
	contexts := contextmgr.NewManager(logger,
		contextmgr.WithPhaseBudget(cfg.Context.PhaseBudget),
		contextmgr.WithThreshold(cfg.Context.CompressionThreshold),
		contextmgr.WithTTL(cfg.Context.TTL),
		contextmgr.WithBus(bus),
	)

	engine := service.NewEngine(&service.EngineConfig{
		ConcurrencyLimit: cfg.Engine.ConcurrencyLimit,
		FallbackOrder:    cfg.Engine.FallbackOrder,
	}, dispatcher, contexts, db, db, bus, logger)

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		store:  db,
		engine: engine,
		health: health,
		agents: agents,
		bus:    bus,
	}
	cleanup := func() {
		bus.Close()
		if err := db.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}
	return rt, cleanup, nil
}

// registryConfig translates provider configuration into adapter settings,
// skipping disabled providers.
func registryConfig(cfg *config.Config) providers.RegistryConfig {
	rc := providers.RegistryConfig{}
	if cfg.Providers.Anthropic.Enabled {
		rc.Anthropic = clientConfig(cfg.Providers.Anthropic)
	}
	if cfg.Providers.OpenAI.Enabled {
		rc.OpenAI = clientConfig(cfg.Providers.OpenAI)
	}
	if cfg.Providers.Ollama.Enabled {
		rc.Ollama = clientConfig(cfg.Providers.Ollama)
	}
	return rc
}

func clientConfig(p config.ProviderConfig) *providers.ClientConfig {
	return &providers.ClientConfig{
		APIKey:       p.APIKey,
		BaseURL:      p.BaseURL,
		DefaultModel: p.Model,
		Timeout:      p.Timeout,
		MaxTokens:    p.MaxTokens,
	}
}

func rateLimits(cfg *config.Config) map[string]service.RateLimiterConfig {
	limits := make(map[string]service.RateLimiterConfig)
	for name, p := range map[string]config.ProviderConfig{
		"anthropic": cfg.Providers.Anthropic,
		"openai":    cfg.Providers.OpenAI,
		"ollama":    cfg.Providers.Ollama,
	} {
		if !p.Enabled || p.RequestsPerMin <= 0 {
			continue
		}
		burst := p.Burst
		if burst <= 0 {
			burst = 1
		}
		limits[name] = service.RateLimiterConfig{
			MaxTokens:  burst,
			RefillRate: p.RequestsPerMin / 60.0,
		}
	}
	return limits
}

// outputJSON prints a value as indented JSON on stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadTemplate reads a template file, falling back to the built-in default
// when path is empty.
func loadTemplate(path string) (*config.Template, error) {
	if path == "" {
		return config.DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return config.ParseTemplate(data)
}
