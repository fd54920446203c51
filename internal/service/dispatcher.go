package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

// Dispatcher executes a phase's agent tasks against the provider gateway,
// enforcing a concurrency bound, provider fallback order, and per-task
// retry.
//
// Attempt policy (fixed for this deployment): retry-then-fallback. A task
// is retried on the current provider with exponential backoff up to the
// retry policy's MaxAttempts, then the dispatcher advances to the next
// provider in the fallback order. Fatal errors (auth, malformed request)
// fail the task immediately with no fallback. Total attempts per task are
// capped at len(fallbackOrder) * MaxAttempts.
type Dispatcher struct {
	providers map[string]core.Provider
	health    *HealthRegistry
	rates     *RateLimiterRegistry
	retry     *RetryPolicy
	agents    core.AgentRegistry
	logger    *logging.Logger

	callTimeout time.Duration
}

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	CallTimeout time.Duration
	Retry       *RetryPolicy
	RateLimits  map[string]RateLimiterConfig

	// Agents supplies per-agent defaults (model, system prompt) applied
	// when a task does not set them. Optional.
	Agents core.AgentRegistry
}

// DefaultDispatcherConfig returns default configuration.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		CallTimeout: 5 * time.Minute,
		Retry:       DefaultRetryPolicy(),
	}
}

// NewDispatcher creates a dispatcher over a closed set of providers.
func NewDispatcher(cfg *DispatcherConfig, providers map[string]core.Provider, health *HealthRegistry, logger *logging.Logger) *Dispatcher {
	if cfg == nil {
		cfg = DefaultDispatcherConfig()
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	if health == nil {
		health = NewHealthRegistry()
	}
	return &Dispatcher{
		providers:   providers,
		health:      health,
		rates:       NewRateLimiterRegistry(cfg.RateLimits),
		retry:       cfg.Retry,
		agents:      cfg.Agents,
		logger:      logger,
		callTimeout: cfg.CallTimeout,
	}
}

// Health returns the dispatcher's health registry.
func (d *Dispatcher) Health() *HealthRegistry {
	return d.health
}

// TaskResult is the functional outcome of one task. The dispatcher writes
// only the task's own record; callers merge results into phase state.
type TaskResult struct {
	TaskID    core.TaskID
	Status    core.TaskStatus
	Result    string
	Usage     core.Usage
	Attempts  []core.Attempt
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// RunPhaseTasks executes a batch of independent tasks under the bounded
// worker pool. Each task is its own stream; no ordering is guaranteed
// across tasks.
func (d *Dispatcher) RunPhaseTasks(ctx context.Context, tasks []*core.AgentTask, pkg *core.ContextPackage, concurrencyLimit int, fallbackOrder []string) []TaskResult {
	streams := make([][]*core.AgentTask, len(tasks))
	for i, t := range tasks {
		streams[i] = []*core.AgentTask{t}
	}
	return d.RunStreams(ctx, streams, pkg, concurrencyLimit, fallbackOrder)
}

// RunStreams executes task streams: streams run concurrently with each
// other, tasks inside one stream run in the order assigned. The
// concurrency bound applies across the whole batch, not per stream.
func (d *Dispatcher) RunStreams(ctx context.Context, streams [][]*core.AgentTask, pkg *core.ContextPackage, concurrencyLimit int, fallbackOrder []string) []TaskResult {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 1
	}

	total := 0
	for _, s := range streams {
		total += len(s)
	}
	results := make(chan TaskResult, total)

	// The semaphore bounds running tasks across all streams; errgroup
	// only fans out one goroutine per stream.
	sem := make(chan struct{}, concurrencyLimit)

	var g errgroup.Group
	for _, stream := range streams {
		stream := stream
		g.Go(func() error {
			for _, task := range stream {
				if ctx.Err() != nil {
					results <- d.cancelTask(task)
					continue
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					results <- d.cancelTask(task)
					continue
				}
				res := d.runTask(ctx, task, pkg, fallbackOrder)
				<-sem
				results <- res
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // stream goroutines never return errors
	close(results)

	out := make([]TaskResult, 0, total)
	for r := range results {
		out = append(out, r)
	}
	return out
}

// cancelTask marks a never-dispatched task as failed under cooperative
// cancellation so its phase still reaches a terminal status.
func (d *Dispatcher) cancelTask(task *core.AgentTask) TaskResult {
	err := core.ErrCancelled("task not dispatched: workflow cancelled")
	now := time.Now()
	if task.Status == core.TaskStatusPending {
		task.MarkRunning() //nolint:errcheck // pending->running cannot fail
	}
	task.MarkFailed(err) //nolint:errcheck
	return TaskResult{
		TaskID:    task.ID,
		Status:    core.TaskStatusFailed,
		Err:       err,
		StartedAt: now,
		EndedAt:   now,
	}
}

// runTask drives one task through the bounded attempt state machine:
// provider index advances through the fallback order, attempt count is
// bounded per provider by the retry policy.
func (d *Dispatcher) runTask(ctx context.Context, task *core.AgentTask, pkg *core.ContextPackage, fallbackOrder []string) TaskResult {
	log := d.logger.WithTask(string(task.ID))

	if err := task.MarkRunning(); err != nil {
		return TaskResult{TaskID: task.ID, Status: task.Status, Err: err}
	}
	started := time.Now()

	var lastErr error
	if len(fallbackOrder) == 0 {
		lastErr = core.ErrState(core.CodeNoProviders, "empty provider fallback order")
	}

	for _, name := range fallbackOrder {
		provider, ok := d.providers[name]
		if !ok {
			lastErr = core.ErrState(core.CodeNoProviders, fmt.Sprintf("unknown provider: %s", name))
			continue
		}

		plog := log.WithProvider(name)

		if !d.health.Healthy(name) {
			task.RecordAttempt(core.Attempt{
				Provider: name,
				Outcome:  core.AttemptOutcomeSkipped,
				Error:    "provider degraded",
				At:       time.Now(),
			})
			plog.Debug("skipping degraded provider")
			continue
		}

		resp, err := d.callWithRetry(ctx, provider, task, pkg, plog)
		if err == nil {
			task.MarkSucceeded(resp.Content, resp.Usage.TokensIn, resp.Usage.TokensOut) //nolint:errcheck
			return TaskResult{
				TaskID:    task.ID,
				Status:    core.TaskStatusSucceeded,
				Result:    resp.Content,
				Usage:     resp.Usage,
				Attempts:  task.Attempts,
				StartedAt: started,
				EndedAt:   time.Now(),
			}
		}
		lastErr = err

		if core.IsFatalProviderError(err) {
			plog.Warn("fatal provider error, no fallback", "error", err)
			break
		}
		if ctx.Err() != nil {
			break
		}
		plog.Info("advancing to next provider", "error", err)
	}

	// Every provider skipped as degraded: nothing set lastErr, but the
	// failure still needs a cause in the task record.
	if lastErr == nil {
		lastErr = core.ErrProvider(core.CodeAllDegraded,
			"all providers in fallback order are degraded", true)
	}

	task.MarkFailed(lastErr) //nolint:errcheck
	return TaskResult{
		TaskID:    task.ID,
		Status:    core.TaskStatusFailed,
		Attempts:  task.Attempts,
		Err:       lastErr,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
}

// callWithRetry runs the bounded same-provider retry loop, recording every
// attempt (including failures) in the task history.
func (d *Dispatcher) callWithRetry(ctx context.Context, provider core.Provider, task *core.AgentTask, pkg *core.ContextPackage, log *logging.Logger) (*core.CompletionResponse, error) {
	name := provider.Name()
	limiter := d.rates.Get(name)

	var resp *core.CompletionResponse
	err := d.retry.ExecuteWithNotify(ctx, func(ctx context.Context) error {
		if err := limiter.Acquire(ctx); err != nil {
			return err
		}

		// In-flight calls are never interrupted by cooperative
		// cancellation; they run under their own timeout only.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.callTimeout)
		defer cancel()

		start := time.Now()
		r, callErr := provider.Complete(callCtx, d.buildRequest(task, pkg))
		latency := time.Since(start)

		attempt := core.Attempt{
			Provider: name,
			Latency:  latency,
			At:       start,
		}
		if callErr == nil {
			attempt.Outcome = core.AttemptOutcomeSuccess
			task.RecordAttempt(attempt)
			d.health.RecordSuccess(name)
			resp = r
			return nil
		}

		attempt.Error = callErr.Error()
		if core.IsRetryable(callErr) {
			attempt.Outcome = core.AttemptOutcomeRetryable
		} else {
			attempt.Outcome = core.AttemptOutcomeFatal
		}
		task.RecordAttempt(attempt)
		d.health.RecordFailure(name)
		return callErr
	}, func(attempt int, err error, delay time.Duration) {
		task.Retries++
		log.Warn("task attempt failed, backing off",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	})

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// buildRequest shapes the provider request from the task, the agent
// registry defaults, and the context package. The agent's system prompt
// precedes the context package so role instructions come first.
func (d *Dispatcher) buildRequest(task *core.AgentTask, pkg *core.ContextPackage) core.CompletionRequest {
	model := task.Model
	messages := make([]core.Message, 0, 3)

	if d.agents != nil {
		if desc, err := d.agents.Lookup(task.Agent); err == nil {
			if model == "" {
				model = desc.DefaultModel
			}
			if desc.SystemPrompt != "" {
				messages = append(messages, core.Message{
					Role:    "system",
					Content: desc.SystemPrompt,
				})
			}
		}
	}
	if pkg != nil && pkg.Content != "" {
		messages = append(messages, core.Message{
			Role:    "system",
			Content: pkg.Content,
		})
	}
	messages = append(messages, core.Message{
		Role:    "user",
		Content: task.Prompt,
	})
	return core.CompletionRequest{
		Messages: messages,
		Model:    model,
		Timeout:  d.callTimeout,
	}
}
