package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Engine.ConcurrencyLimit)
	assert.Equal(t, []string{"anthropic", "openai", "ollama"}, cfg.Engine.FallbackOrder)
	assert.Equal(t, 5*time.Minute, cfg.Engine.CallTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 8000, cfg.Context.PhaseBudget)
	assert.InDelta(t, 0.8, cfg.Context.CompressionThreshold, 1e-9)
	assert.True(t, cfg.Providers.Anthropic.Enabled)
	assert.False(t, cfg.Providers.Ollama.Enabled)
	assert.Equal(t, ".cascade/cascade.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:8744", cfg.Server.Addr)
}

func TestLoadProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
engine:
  concurrency_limit: 8
providers:
  ollama:
    enabled: true
    model: mistral
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cascade.yaml"), []byte(content), 0o600))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.ConcurrencyLimit)
	assert.True(t, cfg.Providers.Ollama.Enabled)
	assert.Equal(t, "mistral", cfg.Providers.Ollama.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := "engine:\n  concurrency_limit: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cascade.yaml"), []byte(content), 0o600))
	t.Setenv("CASCADE_ENGINE_CONCURRENCY_LIMIT", "2")
	t.Setenv("CASCADE_PROVIDERS_ANTHROPIC_API_KEY", "sk-from-env")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.ConcurrencyLimit)
	assert.Equal(t, "sk-from-env", cfg.Providers.Anthropic.APIKey)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, loader.ConfigFile())
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cascade.yaml"), []byte("log: [\n"), 0o600))

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestDefaultConfigYAMLParses(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cascade.yaml"), []byte(DefaultConfigYAML), 0o600))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.ConcurrencyLimit)
	assert.Equal(t, 30*time.Minute, cfg.Context.TTL)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(orig))
	})
}
