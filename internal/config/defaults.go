package config

// DefaultConfigYAML is the scaffold written by `cascade init`. Values not
// specified here use the loader defaults.
const DefaultConfigYAML = `# Cascade AI configuration
#
# Precedence: CLI flags > CASCADE_* environment variables > this file >
# ~/.config/cascade/config.yaml > built-in defaults.

log:
  level: info
  format: auto

engine:
  concurrency_limit: 4
  fallback_order: [anthropic, openai, ollama]
  call_timeout: 5m

retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  jitter_factor: 0.2
  multiplier: 2.0

context:
  phase_budget: 8000
  compression_threshold: 0.8
  ttl: 30m

providers:
  anthropic:
    enabled: true
    # api_key: set via CASCADE_PROVIDERS_ANTHROPIC_API_KEY
    model: claude-sonnet-4-20250514
  openai:
    enabled: true
    # api_key: set via CASCADE_PROVIDERS_OPENAI_API_KEY
    model: gpt-4o
  ollama:
    enabled: false
    base_url: http://localhost:11434
    model: llama3.1

store:
  path: .cascade/cascade.db

server:
  addr: 127.0.0.1:8744
`
