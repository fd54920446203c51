// Package contextmgr owns creation, compression, and expiry of the
// bounded-size context packages handed between workflow phases.
package contextmgr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/events"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
)

// MinTokenBudget is the floor below which no package can carry meaningful
// content; budgets under it fail with a budget error instead of silently
// truncating to nothing.
const MinTokenBudget = 16

// DefaultCompressionThreshold triggers compression when measured size
// exceeds this fraction of the budget.
const DefaultCompressionThreshold = 0.8

// DefaultTTL is how long a package stays retrievable.
const DefaultTTL = 30 * time.Minute

// DefaultPhaseBudget is the per-phase token budget used by BuildForPhase
// unless configured otherwise.
const DefaultPhaseBudget = 8000

type entry struct {
	pkg      core.ContextPackage
	original string // retained uncompressed source, audit only
}

// Manager builds, stores, and expires context packages. Packages are
// immutable once created: reads hand out copies, compression happens only
// during Build.
type Manager struct {
	mu       sync.RWMutex
	packages map[string]*entry

	threshold   float64
	ttl         time.Duration
	phaseBudget int
	now         func() time.Time
	bus         *events.Bus
	logger      *logging.Logger
}

// Option configures the manager.
type Option func(*Manager)

// WithThreshold sets the compression trigger fraction.
func WithThreshold(f float64) Option {
	return func(m *Manager) {
		m.threshold = f
	}
}

// WithTTL sets package lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		m.ttl = d
	}
}

// WithPhaseBudget sets the token budget BuildForPhase applies.
func WithPhaseBudget(tokens int) Option {
	return func(m *Manager) {
		m.phaseBudget = tokens
	}
}

// WithBus attaches an event bus for compression notifications.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// withClock overrides the time source (for testing).
func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a context manager.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		packages:    make(map[string]*entry),
		threshold:   DefaultCompressionThreshold,
		ttl:         DefaultTTL,
		phaseBudget: DefaultPhaseBudget,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BuildOption configures a single build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	retainOriginal bool
	workflowID     string
}

// WithRetainOriginal keeps the uncompressed source for audit retrieval.
func WithRetainOriginal() BuildOption {
	return func(c *buildConfig) {
		c.retainOriginal = true
	}
}

// withWorkflow tags build events with the owning workflow.
func withWorkflow(id string) BuildOption {
	return func(c *buildConfig) {
		c.workflowID = id
	}
}

// Build measures source material and produces a package within the token
// budget: compression when measured size exceeds budget*threshold, hard
// truncation to the budget boundary when compression falls short. A budget
// below the minimum floor is a budget error, never a silent empty package.
func (m *Manager) Build(typ core.ContextType, source string, tokenBudget int, opts ...BuildOption) (*core.ContextPackage, error) {
	if !core.ValidContextType(typ) {
		return nil, core.ErrValidation("CONTEXT_TYPE_INVALID",
			fmt.Sprintf("invalid context type: %s", typ))
	}
	if tokenBudget < MinTokenBudget {
		return nil, core.ErrBudgetExceeded(tokenBudget, MinTokenBudget)
	}

	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	content := source
	count := CountTokens(content)
	compressed := false
	truncated := false

	if count > int(float64(tokenBudget)*m.threshold) {
		content = Compress(typ, content, budgetChars(tokenBudget))
		count = CountTokens(content)
		compressed = true
	}
	if count > tokenBudget {
		content = truncate(content, budgetChars(tokenBudget))
		count = CountTokens(content)
		truncated = true
	}

	now := m.now()
	pkg := core.ContextPackage{
		ID:          uuid.NewString(),
		Type:        typ,
		TokenBudget: tokenBudget,
		Content:     content,
		TokenCount:  count,
		Compressed:  compressed,
		Truncated:   truncated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}

	e := &entry{pkg: pkg}
	if cfg.retainOriginal {
		e.original = source
	}

	m.mu.Lock()
	m.packages[pkg.ID] = e
	m.mu.Unlock()

	if compressed {
		m.logger.Debug("context package compressed",
			"context_id", pkg.ID,
			"type", typ,
			"budget", tokenBudget,
			"tokens", count,
			"truncated", truncated,
		)
		if m.bus != nil {
			if truncated {
				m.bus.Publish(events.NewContextTruncated(cfg.workflowID, pkg.ID, tokenBudget, count))
			} else {
				m.bus.Publish(events.NewContextCompressed(cfg.workflowID, pkg.ID, tokenBudget, count))
			}
		}
	}

	out := pkg
	return &out, nil
}

// Get returns a copy of the package, or a not-found error. Expired
// packages are evicted lazily on access.
func (m *Manager) Get(id string) (*core.ContextPackage, error) {
	m.mu.RLock()
	e, ok := m.packages[id]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound("context package", id)
	}

	if e.pkg.Expired(m.now()) {
		m.mu.Lock()
		delete(m.packages, id)
		m.mu.Unlock()
		return nil, core.ErrNotFound("context package", id)
	}

	out := e.pkg
	return &out, nil
}

// Original returns the retained uncompressed source of a package built
// with WithRetainOriginal.
func (m *Manager) Original(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.packages[id]
	if !ok || e.original == "" {
		return "", core.ErrNotFound("context original", id)
	}
	return e.original, nil
}

// Expire removes a package immediately.
func (m *Manager) Expire(id string) {
	m.mu.Lock()
	delete(m.packages, id)
	m.mu.Unlock()
}

// Len returns the number of live packages.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.packages)
}

// BuildForPhase assembles a phase's context from the workflow prompt and
// the evidence of its satisfied dependencies, then builds a package under
// the configured phase budget.
func (m *Manager) BuildForPhase(ctx context.Context, wf *core.WorkflowExecution, phase *core.Phase) (*core.ContextPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := assemblePhaseSource(wf, phase)
	return m.Build(phaseContextType(phase), source, m.phaseBudget, withWorkflow(string(wf.ID)))
}

// phaseContextType picks the compression strategy for a phase: planning
// and review phases favor decisions, implementation phases favor code.
func phaseContextType(phase *core.Phase) core.ContextType {
	name := phase.Name
	switch {
	case containsAny(name, "plan", "design", "review", "consensus", "decide"):
		return core.ContextTypeStrategic
	case containsAny(name, "implement", "code", "build", "test", "fix"):
		return core.ContextTypeTechnical
	default:
		return core.ContextTypeDefault
	}
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// assemblePhaseSource concatenates the prompt with dependency evidence in
// deterministic phase order.
func assemblePhaseSource(wf *core.WorkflowExecution, phase *core.Phase) string {
	var sb strings.Builder
	sb.WriteString("# Objective\n")
	sb.WriteString(wf.Prompt)

	deps := append([]int(nil), phase.DependsOn...)
	sort.Ints(deps)
	for _, dep := range deps {
		d, ok := wf.Phase(dep)
		if !ok || len(d.Evidence) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n\n## Evidence from %s\n", d.Name)
		keys := make([]string, 0, len(d.Evidence))
		for k := range d.Evidence {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "### %s\n%v\n", k, d.Evidence[k])
		}
	}
	return sb.String()
}

// truncate cuts content at the character boundary without splitting a
// UTF-8 sequence.
func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
