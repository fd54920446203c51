package config

import (
	"fmt"
	"sort"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// AgentCatalog is a read-only core.AgentRegistry built from descriptor
// definitions. The dispatcher consults it to fill in an agent's default
// model and system prompt when a task does not set them.
type AgentCatalog struct {
	byName map[string]core.AgentDescriptor
}

// NewAgentCatalog builds a catalog from descriptors. Names must be
// non-empty and unique.
func NewAgentCatalog(descriptors ...core.AgentDescriptor) (*AgentCatalog, error) {
	byName := make(map[string]core.AgentDescriptor, len(descriptors))
	for i, d := range descriptors {
		if d.Name == "" {
			return nil, core.ErrValidation("AGENT_NAME",
				fmt.Sprintf("agent %d: name required", i))
		}
		if _, ok := byName[d.Name]; ok {
			return nil, core.ErrValidation("AGENT_DUPLICATE",
				fmt.Sprintf("agent %q defined twice", d.Name))
		}
		if d.InputShape == "" {
			d.InputShape = "text"
		}
		byName[d.Name] = d
	}
	return &AgentCatalog{byName: byName}, nil
}

// Lookup returns the descriptor for an agent name.
func (c *AgentCatalog) Lookup(name string) (core.AgentDescriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return core.AgentDescriptor{}, core.ErrValidation(core.CodeAgentUnknown,
			fmt.Sprintf("unknown agent: %s", name))
	}
	return d, nil
}

// List returns all known agent names, sorted.
func (c *AgentCatalog) List() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultAgents returns the descriptors for the agents the built-in
// workflow template uses. Default models are left empty so each provider
// falls back to its own configured model; a custom catalog can pin one.
func DefaultAgents() []core.AgentDescriptor {
	return []core.AgentDescriptor{
		{
			Name:         "analyst",
			InputShape:   "text",
			SystemPrompt: "You analyze objectives. Identify constraints, risks, and unknowns before any work starts. Be concrete and brief.",
		},
		{
			Name:         "planner",
			InputShape:   "text",
			SystemPrompt: "You produce ordered, actionable plans. Each step names what is done and how it is verified.",
		},
		{
			Name:         "builder",
			InputShape:   "text",
			SystemPrompt: "You implement plans. Produce working output, note assumptions, and flag anything you could not complete.",
		},
		{
			Name:         "tester",
			InputShape:   "text",
			SystemPrompt: "You write verification steps. Cover the happy path, the edge cases, and the failure modes.",
		},
		{
			Name:         "reviewer",
			InputShape:   "text",
			SystemPrompt: "You review work for defects. Report findings by severity with a concrete location for each.",
		},
		{
			Name:         "summarizer",
			InputShape:   "text",
			SystemPrompt: "You summarize outcomes. State what was done, what failed, and what remains, in that order.",
		},
	}
}
