package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/events"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

// ContextBuilder assembles the token-budgeted context package a phase's
// tasks run against.
type ContextBuilder interface {
	BuildForPhase(ctx context.Context, wf *core.WorkflowExecution, phase *core.Phase) (*core.ContextPackage, error)
}

// EngineConfig holds workflow engine configuration.
type EngineConfig struct {
	// ConcurrencyLimit bounds concurrently running tasks per phase batch.
	ConcurrencyLimit int

	// FallbackOrder is the provider order the dispatcher walks when a
	// provider exhausts its retries.
	FallbackOrder []string
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		ConcurrencyLimit: 4,
		FallbackOrder:    []string{"anthropic", "openai", "ollama"},
	}
}

// Engine owns workflow executions: it schedules phases off the dependency
// graph, hands task batches to the dispatcher, and aggregates evidence.
// Executions are mutated only by the engine; status reads hand out deep
// clones.
type Engine struct {
	cfg        *EngineConfig
	dispatcher *Dispatcher
	contexts   ContextBuilder
	store      core.ExecutionStore
	evidence   core.EvidenceSink
	bus        *events.Bus
	logger     *logging.Logger

	mu   sync.RWMutex
	runs map[core.WorkflowID]*run
}

// run is one in-memory execution. Its mutex guards all reads and writes of
// the workflow state; provider calls happen outside the lock.
type run struct {
	mu     sync.RWMutex
	wf     *core.WorkflowExecution
	graph  *PhaseGraph
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a workflow engine. Store, evidence sink, and bus are
// optional; a nil bus disables event publishing.
func NewEngine(cfg *EngineConfig, dispatcher *Dispatcher, contexts ContextBuilder, store core.ExecutionStore, evidence core.EvidenceSink, bus *events.Bus, logger *logging.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultEngineConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		dispatcher: dispatcher,
		contexts:   contexts,
		store:      store,
		evidence:   evidence,
		bus:        bus,
		logger:     logger,
		runs:       make(map[core.WorkflowID]*run),
	}
}

// Submit validates the workflow, builds its dependency graph, and starts
// execution in the background. It returns the workflow ID immediately.
func (e *Engine) Submit(ctx context.Context, prompt string, phases []*core.Phase) (core.WorkflowID, error) {
	id := core.WorkflowID(uuid.NewString())
	wf := core.NewWorkflowExecution(id, prompt, phases)
	if err := wf.Validate(); err != nil {
		return "", err
	}

	graph := NewPhaseGraph()
	for _, p := range phases {
		if err := graph.AddPhase(p); err != nil {
			return "", err
		}
	}
	for _, p := range phases {
		for _, dep := range p.DependsOn {
			if err := graph.AddDependency(p.Index, dep); err != nil {
				return "", err
			}
		}
	}
	if _, err := graph.Build(); err != nil {
		return "", err
	}

	if e.store != nil {
		if err := e.store.Save(ctx, wf); err != nil {
			return "", fmt.Errorf("persisting workflow: %w", err)
		}
	}

	// The run outlives the submission request.
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		wf:     wf,
		graph:  graph,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[id] = r
	e.mu.Unlock()

	e.publish(events.NewWorkflowStarted(string(id)))
	e.logger.WithWorkflow(string(id)).Info("workflow submitted",
		"phases", len(phases),
		"concurrency_limit", e.cfg.ConcurrencyLimit,
	)

	go e.runLoop(runCtx, r)
	return id, nil
}

// GetStatus returns a deep clone of the execution state. Repeated calls
// without intervening transitions return equal snapshots.
func (e *Engine) GetStatus(ctx context.Context, id core.WorkflowID) (*core.WorkflowExecution, error) {
	e.mu.RLock()
	r, ok := e.runs[id]
	e.mu.RUnlock()

	if ok {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.wf.Clone(), nil
	}
	if e.store != nil {
		return e.store.Load(ctx, id)
	}
	return nil, core.ErrNotFound("workflow", string(id))
}

// Cancel requests cooperative cancellation: no new phase starts and no new
// task dispatches, in-flight provider calls run to completion. Cancelling a
// terminal workflow is a no-op.
func (e *Engine) Cancel(ctx context.Context, id core.WorkflowID) error {
	e.mu.RLock()
	r, ok := e.runs[id]
	e.mu.RUnlock()

	if !ok {
		return core.ErrNotFound("workflow", string(id))
	}

	r.mu.RLock()
	terminal := r.wf.IsTerminal()
	r.mu.RUnlock()
	if terminal {
		return nil
	}

	e.logger.WithWorkflow(string(id)).Info("cancellation requested")
	r.cancel()
	return nil
}

// Wait blocks until the workflow reaches a terminal status and returns its
// aggregate result.
func (e *Engine) Wait(ctx context.Context, id core.WorkflowID) (*core.Result, error) {
	e.mu.RLock()
	r, ok := e.runs[id]
	e.mu.RUnlock()

	if !ok {
		return nil, core.ErrNotFound("workflow", string(id))
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wf.BuildResult(), nil
}

// Execute submits a workflow and blocks until it finishes.
func (e *Engine) Execute(ctx context.Context, prompt string, phases []*core.Phase) (*core.Result, error) {
	id, err := e.Submit(ctx, prompt, phases)
	if err != nil {
		return nil, err
	}
	return e.Wait(ctx, id)
}

// List returns summaries of persisted executions.
func (e *Engine) List(ctx context.Context) ([]core.ExecutionSummary, error) {
	if e.store == nil {
		return nil, core.ErrState("NO_STORE", "no execution store configured")
	}
	return e.store.List(ctx)
}

// runLoop drives the ready-set scheduler. Ready phases launch as soon as
// their dependencies settle, and the set is re-evaluated on every phase
// completion, so a phase never waits on unrelated in-flight work. The
// loop exits when every phase is terminal or cancellation wins.
func (e *Engine) runLoop(ctx context.Context, r *run) {
	defer close(r.done)
	log := e.logger.WithWorkflow(string(r.wf.ID))

	phaseDone := make(chan int, len(r.wf.Phases))
	scheduled := make(map[int]bool, len(r.wf.Phases))
	running := 0

	for {
		if ctx.Err() != nil {
			// In-flight phases settle before the workflow goes terminal.
			for running > 0 {
				<-phaseDone
				running--
			}
			e.finish(ctx, r, true)
			return
		}

		r.mu.Lock()
		terminal := r.wf.IsTerminal()
		if terminal && running == 0 {
			r.mu.Unlock()
			e.finish(ctx, r, false)
			return
		}
		e.skipBlocked(r.wf)
		ready := r.wf.ReadyPhases()
		allTerminal := r.wf.TerminalPhases()
		r.mu.Unlock()

		if !terminal {
			for _, phase := range ready {
				// MarkRunning happens inside the goroutine, so the loop
				// tracks launched phases itself to avoid double dispatch.
				if scheduled[phase.Index] {
					continue
				}
				scheduled[phase.Index] = true
				running++
				phase := phase
				go func() {
					e.runPhase(ctx, r, phase)
					phaseDone <- phase.Index
				}()
			}
		}

		if running == 0 {
			if allTerminal {
				e.finish(ctx, r, false)
				return
			}
			// Acyclic graph with nothing running and nothing ready:
			// scheduling cannot make progress. Loud failure, not a hang.
			r.mu.Lock()
			r.wf.Fail(core.ErrState(core.CodeExecutionStuck,
				"no runnable phases and execution not finished"))
			r.mu.Unlock()
			e.finish(ctx, r, false)
			return
		}

		select {
		case <-phaseDone:
			running--
		case <-ctx.Done():
			continue
		}

		if e.store != nil {
			r.mu.RLock()
			snapshot := r.wf.Clone()
			r.mu.RUnlock()
			if err := e.store.Save(context.WithoutCancel(ctx), snapshot); err != nil {
				log.Warn("persisting execution snapshot failed", "error", err)
			}
		}
	}
}

// skipBlocked marks pending phases whose required dependency terminally
// failed. Skips cascade: a skipped required dependency blocks dependents on
// the next pass.
func (e *Engine) skipBlocked(wf *core.WorkflowExecution) {
	for changed := true; changed; {
		changed = false
		for _, p := range wf.Phases {
			if p.Status != core.PhaseStatusPending {
				continue
			}
			for _, dep := range p.DependsOn {
				d, ok := wf.Phase(dep)
				if !ok {
					continue
				}
				if d.IsTerminal() && !d.Satisfied() {
					reason := fmt.Sprintf("dependency phase %d (%s) %s", d.Index, d.Name, d.Status)
					if err := p.MarkSkipped(reason); err == nil {
						changed = true
						e.publish(events.NewPhaseSkipped(string(wf.ID), p.Index, p.Name, reason))
					}
					break
				}
			}
		}
	}
}

// runPhase executes one phase end to end: context build, task dispatch,
// outcome derivation, evidence merge.
func (e *Engine) runPhase(ctx context.Context, r *run, phase *core.Phase) {
	wfID := string(r.wf.ID)
	log := e.logger.WithWorkflow(wfID).WithPhase(phase.Name)

	r.mu.Lock()
	if err := r.graph.CheckStartable(phase.Index); err != nil {
		// Starting a phase with unmet dependencies is a scheduler fault;
		// the workflow aborts instead of running out of order.
		r.wf.Fail(err)
		r.mu.Unlock()
		log.Error("phase not startable", "error", err)
		return
	}
	if err := phase.MarkRunning(); err != nil {
		r.mu.Unlock()
		log.Error("phase start rejected", "error", err)
		return
	}
	r.mu.Unlock()
	e.publish(events.NewPhaseStarted(wfID, phase.Index, phase.Name, string(phase.Mode)))
	log.Info("phase started", "mode", phase.Mode, "tasks", len(phase.Tasks))

	pkg, err := e.buildContext(ctx, r, phase)
	if err != nil {
		// Budget and assembly failures are phase-level failures, never
		// silent truncation.
		r.mu.Lock()
		phase.MarkFailed(err) //nolint:errcheck
		r.wf.UpdatedAt = time.Now()
		r.mu.Unlock()
		e.publish(events.NewPhaseFailed(wfID, phase.Index, phase.Name, err.Error()))
		log.Error("phase failed building context", "error", err)
		return
	}

	// The dispatcher works on detached copies; results are merged back
	// under the run lock so status reads never race in-flight mutation.
	r.mu.RLock()
	copies, streams := detachTasks(phase)
	r.mu.RUnlock()

	for _, t := range copies {
		e.publish(events.NewTaskStarted(wfID, string(t.ID), t.Agent, phase.Index))
		if phase.Mode == core.ModeMultiStream {
			log.WithTask(string(t.ID)).WithStream(t.Stream).Debug("task queued")
		}
	}

	results := e.dispatcher.RunStreams(ctx, streams, pkg, e.cfg.ConcurrencyLimit, e.cfg.FallbackOrder)

	r.mu.Lock()
	failed := e.applyResults(r.wf, phase, copies, results)
	if failed != nil {
		phase.MarkFailed(failed) //nolint:errcheck
	} else {
		phase.MarkCompleted() //nolint:errcheck
	}
	r.wf.MergeEvidence(phase)
	elapsed := phase.Duration()
	r.mu.Unlock()

	if failed != nil {
		e.publish(events.NewPhaseFailed(wfID, phase.Index, phase.Name, failed.Error()))
		log.Warn("phase failed", "error", failed)
		return
	}
	e.publish(events.NewPhaseCompleted(wfID, phase.Index, phase.Name, elapsed))
	log.Info("phase completed", "elapsed", elapsed)
}

// buildContext assembles the phase's context package against a status
// snapshot so the builder never sees in-flight mutation.
func (e *Engine) buildContext(ctx context.Context, r *run, phase *core.Phase) (*core.ContextPackage, error) {
	if e.contexts == nil {
		return nil, nil
	}
	r.mu.RLock()
	snapshot := r.wf.Clone()
	r.mu.RUnlock()
	return e.contexts.BuildForPhase(ctx, snapshot, phase)
}

// detachTasks deep-copies the phase's tasks and groups the copies into
// dispatch streams per the phase mode.
func detachTasks(phase *core.Phase) ([]*core.AgentTask, [][]*core.AgentTask) {
	copies := make([]*core.AgentTask, len(phase.Tasks))
	byID := make(map[core.TaskID]*core.AgentTask, len(phase.Tasks))
	for i, t := range phase.Tasks {
		tc := *t
		tc.Attempts = append([]core.Attempt(nil), t.Attempts...)
		copies[i] = &tc
		byID[tc.ID] = &tc
	}

	var streams [][]*core.AgentTask
	switch phase.Mode {
	case core.ModeParallel:
		streams = make([][]*core.AgentTask, len(copies))
		for i, t := range copies {
			streams[i] = []*core.AgentTask{t}
		}
	case core.ModeMultiStream:
		for _, orig := range phase.Streams() {
			stream := make([]*core.AgentTask, len(orig))
			for i, t := range orig {
				stream[i] = byID[t.ID]
			}
			streams = append(streams, stream)
		}
	default: // sequential
		if len(copies) > 0 {
			streams = [][]*core.AgentTask{copies}
		}
	}
	return copies, streams
}

// applyResults merges dispatch outcomes into the phase's task records and
// evidence, and derives the phase outcome: failed iff a non-optional task
// failed. Caller holds the run lock.
func (e *Engine) applyResults(wf *core.WorkflowExecution, phase *core.Phase, copies []*core.AgentTask, results []TaskResult) error {
	byID := make(map[core.TaskID]*core.AgentTask, len(copies))
	for _, t := range copies {
		byID[t.ID] = t
	}

	var firstErr error
	for _, res := range results {
		task := findTask(phase, res.TaskID)
		if task == nil {
			continue
		}
		src := byID[res.TaskID]
		if src != nil {
			*task = *src
		}

		switch res.Status {
		case core.TaskStatusSucceeded:
			key := evidenceKey(phase, task)
			phase.Evidence[key] = task.Result
			e.publish(events.NewTaskCompleted(string(wf.ID), string(task.ID), task.Agent,
				lastProvider(task), res.Usage.TokensIn, res.Usage.TokensOut))
		case core.TaskStatusFailed:
			errMsg := task.Error
			e.publish(events.NewTaskFailed(string(wf.ID), string(task.ID), task.Agent, errMsg))
			if !task.Optional && firstErr == nil {
				if res.Err != nil {
					firstErr = fmt.Errorf("task %s (%s): %w", task.ID, task.Agent, res.Err)
				} else {
					firstErr = fmt.Errorf("task %s (%s) failed: %s", task.ID, task.Agent, errMsg)
				}
			}
		}
	}
	return firstErr
}

func findTask(phase *core.Phase, id core.TaskID) *core.AgentTask {
	for _, t := range phase.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// evidenceKey keys a task's contribution inside the phase evidence map by
// agent name, disambiguating duplicate agents by task ID.
func evidenceKey(phase *core.Phase, task *core.AgentTask) string {
	count := 0
	for _, t := range phase.Tasks {
		if t.Agent == task.Agent {
			count++
		}
	}
	if count > 1 {
		return fmt.Sprintf("%s_%s", task.Agent, task.ID)
	}
	return task.Agent
}

func lastProvider(task *core.AgentTask) string {
	for i := len(task.Attempts) - 1; i >= 0; i-- {
		if task.Attempts[i].Outcome == core.AttemptOutcomeSuccess {
			return task.Attempts[i].Provider
		}
	}
	return ""
}

// finish settles the workflow into its terminal status, persists it, and
// exports the evidence bundle.
func (e *Engine) finish(ctx context.Context, r *run, cancelled bool) {
	r.mu.Lock()
	if cancelled {
		r.wf.MarkCancelled()
	} else if !r.wf.IsTerminal() {
		r.wf.Complete()
	}
	snapshot := r.wf.Clone()
	r.mu.Unlock()

	wfID := string(snapshot.ID)
	log := e.logger.WithWorkflow(wfID)

	switch snapshot.Status {
	case core.WorkflowStatusCompleted:
		e.publishPriority(events.NewWorkflowCompleted(wfID))
	case core.WorkflowStatusCancelled:
		e.publishPriority(events.NewWorkflowCancelled(wfID))
	default:
		e.publishPriority(events.NewWorkflowFailed(wfID, snapshot.Error))
	}
	log.Info("workflow finished", "status", snapshot.Status, "elapsed", snapshot.Elapsed())

	bg := context.WithoutCancel(ctx)
	if e.store != nil {
		if err := e.store.Save(bg, snapshot); err != nil {
			log.Warn("persisting final execution failed", "error", err)
		}
	}
	if e.evidence != nil {
		blob, err := json.Marshal(snapshot.BuildResult())
		if err == nil {
			err = e.evidence.Put(bg, snapshot.ID, blob)
		}
		if err != nil {
			log.Warn("exporting evidence failed", "error", err)
		}
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) publishPriority(ev events.Event) {
	if e.bus != nil {
		e.bus.PublishPriority(ev)
	}
}
