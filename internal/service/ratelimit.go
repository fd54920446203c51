package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter, one per provider.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	MaxTokens  float64 // Maximum bucket capacity
	RefillRate float64 // Tokens added per second
}

// DefaultRateLimiterConfig returns default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxTokens:  10,
		RefillRate: 1,
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		tokens:     cfg.MaxTokens,
		maxTokens:  cfg.MaxTokens,
		refillRate: cfg.RefillRate,
		lastRefill: time.Now(),
	}
}

// Acquire blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// TryAcquire attempts to acquire a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens
}

// refill adds tokens based on elapsed time.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	r.lastRefill = now

	r.tokens = min(r.maxTokens, r.tokens+elapsed.Seconds()*r.refillRate)
}

// RateLimiterRegistry manages rate limiters for multiple providers.
type RateLimiterRegistry struct {
	limiters map[string]*RateLimiter
	configs  map[string]RateLimiterConfig
	mu       sync.RWMutex
}

// NewRateLimiterRegistry creates a registry with per-provider configs.
func NewRateLimiterRegistry(configs map[string]RateLimiterConfig) *RateLimiterRegistry {
	if configs == nil {
		configs = make(map[string]RateLimiterConfig)
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		configs:  configs,
	}
}

// Get returns the rate limiter for a provider, creating it on first use.
func (r *RateLimiterRegistry) Get(provider string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[provider]; ok {
		return limiter
	}

	cfg, ok := r.configs[provider]
	if !ok {
		cfg = DefaultRateLimiterConfig()
	}

	limiter := NewRateLimiter(cfg)
	r.limiters[provider] = limiter
	return limiter
}

// SetConfig replaces the configuration (and limiter) for a provider.
func (r *RateLimiterRegistry) SetConfig(provider string, cfg RateLimiterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[provider] = cfg
	r.limiters[provider] = NewRateLimiter(cfg)
}
