package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateEngine(&cfg.Engine)
	v.validateRetry(&cfg.Retry)
	v.validateContext(&cfg.Context)
	v.validateProviders(&cfg.Providers, cfg.Engine.FallbackOrder)
	v.validateStore(&cfg.Store)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateEngine(cfg *EngineConfig) {
	if cfg.ConcurrencyLimit < 1 {
		v.addError("engine.concurrency_limit", cfg.ConcurrencyLimit, "must be at least 1")
	}
	if len(cfg.FallbackOrder) == 0 {
		v.addError("engine.fallback_order", cfg.FallbackOrder, "at least one provider required")
	}
	seen := make(map[string]bool)
	for _, name := range cfg.FallbackOrder {
		if seen[name] {
			v.addError("engine.fallback_order", name, "duplicate provider")
		}
		seen[name] = true
	}
	if cfg.CallTimeout <= 0 {
		v.addError("engine.call_timeout", cfg.CallTimeout, "must be positive")
	}
}

func (v *Validator) validateRetry(cfg *RetryConfig) {
	if cfg.MaxAttempts < 1 {
		v.addError("retry.max_attempts", cfg.MaxAttempts, "must be at least 1")
	}
	if cfg.BaseDelay <= 0 {
		v.addError("retry.base_delay", cfg.BaseDelay, "must be positive")
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		v.addError("retry.max_delay", cfg.MaxDelay, "must be at least base_delay")
	}
	if cfg.JitterFactor < 0 || cfg.JitterFactor > 1 {
		v.addError("retry.jitter_factor", cfg.JitterFactor, "must be between 0 and 1")
	}
	if cfg.Multiplier < 1 {
		v.addError("retry.multiplier", cfg.Multiplier, "must be at least 1")
	}
}

func (v *Validator) validateContext(cfg *ContextConfig) {
	if cfg.PhaseBudget < 16 {
		v.addError("context.phase_budget", cfg.PhaseBudget, "must be at least 16 tokens")
	}
	if cfg.CompressionThreshold <= 0 || cfg.CompressionThreshold > 1 {
		v.addError("context.compression_threshold", cfg.CompressionThreshold,
			"must be between 0 (exclusive) and 1")
	}
	if cfg.TTL <= 0 {
		v.addError("context.ttl", cfg.TTL, "must be positive")
	}
}

func (v *Validator) validateProviders(cfg *ProvidersConfig, fallbackOrder []string) {
	enabled := map[string]bool{
		"anthropic": cfg.Anthropic.Enabled,
		"openai":    cfg.OpenAI.Enabled,
		"ollama":    cfg.Ollama.Enabled,
	}

	anyEnabled := false
	for _, on := range enabled {
		anyEnabled = anyEnabled || on
	}
	if !anyEnabled {
		v.addError("providers", nil, "at least one provider must be enabled")
	}

	for _, name := range fallbackOrder {
		on, known := enabled[name]
		if !known {
			v.addError("engine.fallback_order", name, "unknown provider")
			continue
		}
		if !on {
			v.addError("engine.fallback_order", name, "provider is not enabled")
		}
	}

	if cfg.Anthropic.Enabled && cfg.Anthropic.APIKey == "" {
		v.addError("providers.anthropic.api_key", "", "required when enabled")
	}
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey == "" {
		v.addError("providers.openai.api_key", "", "required when enabled")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if cfg.Path == "" {
		v.addError("store.path", cfg.Path, "path required")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Addr == "" {
		v.addError("server.addr", cfg.Addr, "listen address required")
	}
}
