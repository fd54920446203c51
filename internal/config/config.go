package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Context   ContextConfig   `mapstructure:"context"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// EngineConfig configures workflow execution.
type EngineConfig struct {
	ConcurrencyLimit int           `mapstructure:"concurrency_limit"`
	FallbackOrder    []string      `mapstructure:"fallback_order"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
}

// RetryConfig configures the per-provider retry policy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	JitterFactor float64       `mapstructure:"jitter_factor"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// ContextConfig configures context package assembly.
type ContextConfig struct {
	PhaseBudget          int           `mapstructure:"phase_budget"`
	CompressionThreshold float64       `mapstructure:"compression_threshold"`
	TTL                  time.Duration `mapstructure:"ttl"`
}

// ProvidersConfig configures the available completion backends.
type ProvidersConfig struct {
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Ollama    ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig configures a single completion backend.
type ProviderConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerMin float64       `mapstructure:"requests_per_min"`
	Burst          float64       `mapstructure:"burst"`
}

// StoreConfig configures execution persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}
