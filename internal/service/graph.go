package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// PhaseGraph constructs and validates the phase dependency graph.
type PhaseGraph struct {
	phases  map[int]*core.Phase
	edges   map[int][]int // phase -> dependencies
	reverse map[int][]int // phase -> dependents
	mu      sync.RWMutex
}

// NewPhaseGraph creates an empty phase graph.
func NewPhaseGraph() *PhaseGraph {
	return &PhaseGraph{
		phases:  make(map[int]*core.Phase),
		edges:   make(map[int][]int),
		reverse: make(map[int][]int),
	}
}

// AddPhase adds a phase to the graph.
func (g *PhaseGraph) AddPhase(p *core.Phase) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.phases[p.Index]; exists {
		return fmt.Errorf("phase %d already exists", p.Index)
	}
	if len(g.phases) >= core.MaxPhases {
		return core.ErrValidation("TOO_MANY_PHASES",
			fmt.Sprintf("graph already holds %d phases", core.MaxPhases))
	}

	g.phases[p.Index] = p
	g.edges[p.Index] = make([]int, 0)
	g.reverse[p.Index] = make([]int, 0)
	return nil
}

// AddDependency records that phase from depends on phase to.
func (g *PhaseGraph) AddDependency(from, to int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.phases[from]; !exists {
		return fmt.Errorf("phase %d not found", from)
	}
	if _, exists := g.phases[to]; !exists {
		return fmt.Errorf("phase %d not found", to)
	}

	for _, dep := range g.edges[from] {
		if dep == to {
			return nil
		}
	}

	g.edges[from] = append(g.edges[from], to)
	g.reverse[to] = append(g.reverse[to], from)
	return nil
}

// GraphState is a validated phase graph.
type GraphState struct {
	Order  []int   // topological order
	Levels [][]int // groups with no edges between members
}

// Build validates the graph (cycle check, topological order) and computes
// parallel execution levels.
func (g *PhaseGraph) Build() (*GraphState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}

	return &GraphState{
		Order:  order,
		Levels: g.calculateLevels(),
	}, nil
}

// topologicalSort returns phases in dependency order using Kahn's algorithm.
// A short result means the graph contains a cycle.
func (g *PhaseGraph) topologicalSort() ([]int, error) {
	inDegree := make(map[int]int)
	for idx := range g.phases {
		inDegree[idx] = len(g.edges[idx])
	}

	queue := make([]int, 0)
	for idx, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, idx)
		}
	}
	sort.Ints(queue)

	result := make([]int, 0, len(g.phases))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		next := make([]int, 0)
		for _, dependent := range g.reverse[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sort.Ints(next)
		queue = append(queue, next...)
	}

	if len(result) != len(g.phases) {
		return nil, core.ErrValidation(core.CodeGraphCycle,
			"phase dependency graph contains a cycle")
	}

	return result, nil
}

// calculateLevels groups phases into levels with no edges between members;
// phases in one level may start concurrently.
func (g *PhaseGraph) calculateLevels() [][]int {
	if len(g.phases) == 0 {
		return nil
	}

	levels := make([][]int, 0)
	assigned := make(map[int]bool)

	for len(assigned) < len(g.phases) {
		level := make([]int, 0)
		for idx := range g.phases {
			if assigned[idx] {
				continue
			}
			allDepsAssigned := true
			for _, dep := range g.edges[idx] {
				if !assigned[dep] {
					allDepsAssigned = false
					break
				}
			}
			if allDepsAssigned {
				level = append(level, idx)
			}
		}
		sort.Ints(level)
		for _, idx := range level {
			assigned[idx] = true
		}
		levels = append(levels, level)
	}

	return levels
}

// Ready returns pending phases whose dependencies are all satisfied.
func (g *PhaseGraph) Ready() []*core.Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := make([]*core.Phase, 0)
	for idx, p := range g.phases {
		if p.Status != core.PhaseStatusPending {
			continue
		}
		satisfied := true
		for _, dep := range g.edges[idx] {
			if !g.phases[dep].Satisfied() {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, p)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Index < ready[j].Index })
	return ready
}

// Blocked returns pending phases that can never run because a required
// dependency failed. These are skipped rather than left dangling.
func (g *PhaseGraph) Blocked() []*core.Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()

	blocked := make([]*core.Phase, 0)
	for idx, p := range g.phases {
		if p.Status != core.PhaseStatusPending {
			continue
		}
		for _, dep := range g.edges[idx] {
			d := g.phases[dep]
			if d.IsTerminal() && !d.Satisfied() {
				blocked = append(blocked, p)
				break
			}
		}
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].Index < blocked[j].Index })
	return blocked
}

// Dependencies returns the dependency indices of a phase.
func (g *PhaseGraph) Dependencies(index int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	deps := g.edges[index]
	if deps == nil {
		return nil
	}
	out := make([]int, len(deps))
	copy(out, deps)
	return out
}

// CheckStartable enforces the dependency invariant at dispatch time. A
// violation is a programming fault, reported as a dependency error that
// aborts the workflow.
func (g *PhaseGraph) CheckStartable(index int) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, ok := g.phases[index]
	if !ok {
		return core.ErrState(core.CodeInvalidState, fmt.Sprintf("phase %d not in graph", index))
	}
	if p.Status != core.PhaseStatusPending {
		return core.ErrState(core.CodeInvalidState,
			fmt.Sprintf("phase %d is %s, not pending", index, p.Status))
	}
	for _, dep := range g.edges[index] {
		if !g.phases[dep].Satisfied() {
			return core.ErrDependencyUnmet(index, dep)
		}
	}
	return nil
}

// PhaseCount returns the number of phases in the graph.
func (g *PhaseGraph) PhaseCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.phases)
}
