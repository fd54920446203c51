package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/config"
)

func TestLoadTemplateDefault(t *testing.T) {
	tpl, err := loadTemplate("")
	if err != nil {
		t.Fatalf("loadTemplate: %v", err)
	}
	if tpl.Name != "default" {
		t.Errorf("template = %q, want default", tpl.Name)
	}
}

func TestLoadTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpl.yaml")
	content := "name: custom\nphases:\n  - name: review\n    tasks:\n      - agent: reviewer\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing template: %v", err)
	}

	tpl, err := loadTemplate(path)
	if err != nil {
		t.Fatalf("loadTemplate: %v", err)
	}
	if tpl.Name != "custom" || len(tpl.Phases) != 1 {
		t.Errorf("template = %q with %d phases", tpl.Name, len(tpl.Phases))
	}
}

func TestLoadTemplateErrors(t *testing.T) {
	if _, err := loadTemplate(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("phases: ["), 0o600); err != nil {
		t.Fatalf("writing template: %v", err)
	}
	if _, err := loadTemplate(path); err == nil {
		t.Error("expected error for malformed template")
	}
}

func TestRegistryConfigSkipsDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.Anthropic = config.ProviderConfig{Enabled: true, APIKey: "sk", Model: "claude-sonnet-4-20250514"}
	cfg.Providers.OpenAI = config.ProviderConfig{Enabled: false, APIKey: "sk"}
	cfg.Providers.Ollama = config.ProviderConfig{Enabled: true, BaseURL: "http://localhost:11434"}

	rc := registryConfig(cfg)
	if rc.Anthropic == nil || rc.Ollama == nil {
		t.Error("enabled providers missing from registry config")
	}
	if rc.OpenAI != nil {
		t.Error("disabled provider present in registry config")
	}
	if rc.Anthropic.DefaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", rc.Anthropic.DefaultModel)
	}
}

func TestRateLimitsMapping(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.Anthropic = config.ProviderConfig{Enabled: true, RequestsPerMin: 120, Burst: 5}
	cfg.Providers.OpenAI = config.ProviderConfig{Enabled: true, RequestsPerMin: 0}
	cfg.Providers.Ollama = config.ProviderConfig{Enabled: false, RequestsPerMin: 600}

	limits := rateLimits(cfg)
	if len(limits) != 1 {
		t.Fatalf("limits = %d entries, want 1", len(limits))
	}

	anthropic := limits["anthropic"]
	if anthropic.MaxTokens != 5 {
		t.Errorf("MaxTokens = %v, want 5", anthropic.MaxTokens)
	}
	// 120 requests per minute refills 2 tokens per second.
	if anthropic.RefillRate != 2.0 {
		t.Errorf("RefillRate = %v, want 2.0", anthropic.RefillRate)
	}
}
