package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CASCADE",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CASCADE",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CASCADE_*)
// 3. Project config (.cascade.yaml in current directory)
// 4. User config (~/.config/cascade/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".cascade")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "cascade"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Engine defaults
	l.v.SetDefault("engine.concurrency_limit", 4)
	l.v.SetDefault("engine.fallback_order", []string{"anthropic", "openai", "ollama"})
	l.v.SetDefault("engine.call_timeout", "5m")

	// Retry defaults
	l.v.SetDefault("retry.max_attempts", 3)
	l.v.SetDefault("retry.base_delay", "1s")
	l.v.SetDefault("retry.max_delay", "30s")
	l.v.SetDefault("retry.jitter_factor", 0.2)
	l.v.SetDefault("retry.multiplier", 2.0)

	// Context defaults
	l.v.SetDefault("context.phase_budget", 8000)
	l.v.SetDefault("context.compression_threshold", 0.8)
	l.v.SetDefault("context.ttl", "30m")

	// Provider defaults
	l.v.SetDefault("providers.anthropic.enabled", true)
	l.v.SetDefault("providers.anthropic.model", "claude-sonnet-4-20250514")
	l.v.SetDefault("providers.anthropic.max_tokens", 8192)
	l.v.SetDefault("providers.anthropic.timeout", "2m")
	l.v.SetDefault("providers.anthropic.requests_per_min", 60.0)
	l.v.SetDefault("providers.anthropic.burst", 10.0)
	l.v.SetDefault("providers.openai.enabled", true)
	l.v.SetDefault("providers.openai.model", "gpt-4o")
	l.v.SetDefault("providers.openai.max_tokens", 8192)
	l.v.SetDefault("providers.openai.timeout", "2m")
	l.v.SetDefault("providers.openai.requests_per_min", 60.0)
	l.v.SetDefault("providers.openai.burst", 10.0)
	l.v.SetDefault("providers.ollama.enabled", false)
	l.v.SetDefault("providers.ollama.base_url", "http://localhost:11434")
	l.v.SetDefault("providers.ollama.model", "llama3.1")
	l.v.SetDefault("providers.ollama.timeout", "5m")
	l.v.SetDefault("providers.ollama.requests_per_min", 600.0)
	l.v.SetDefault("providers.ollama.burst", 20.0)

	// Store defaults
	l.v.SetDefault("store.path", ".cascade/cascade.db")

	// Server defaults
	l.v.SetDefault("server.addr", "127.0.0.1:8744")
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}
