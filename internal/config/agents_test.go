package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

func TestAgentCatalog_DefaultsCoverBuiltInTemplate(t *testing.T) {
	catalog, err := NewAgentCatalog(DefaultAgents()...)
	require.NoError(t, err)

	// Every agent the default template references must resolve.
	for _, phase := range DefaultTemplate().Phases {
		for _, task := range phase.Tasks {
			desc, err := catalog.Lookup(task.Agent)
			require.NoError(t, err, "agent %s", task.Agent)
			assert.Equal(t, task.Agent, desc.Name)
			assert.Equal(t, "text", desc.InputShape)
			assert.NotEmpty(t, desc.SystemPrompt)
		}
	}
}

func TestAgentCatalog_UnknownAgent(t *testing.T) {
	catalog, err := NewAgentCatalog(DefaultAgents()...)
	require.NoError(t, err)

	_, err = catalog.Lookup("archaeologist")
	require.Error(t, err)
	var derr *core.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, core.CodeAgentUnknown, derr.Code)
}

func TestAgentCatalog_ListSorted(t *testing.T) {
	catalog, err := NewAgentCatalog(
		core.AgentDescriptor{Name: "zeta"},
		core.AgentDescriptor{Name: "alpha"},
		core.AgentDescriptor{Name: "mid"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, catalog.List())
}

func TestAgentCatalog_RejectsInvalidDescriptors(t *testing.T) {
	_, err := NewAgentCatalog(core.AgentDescriptor{Name: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name required")

	_, err = NewAgentCatalog(
		core.AgentDescriptor{Name: "builder"},
		core.AgentDescriptor{Name: "builder"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")
}

func TestAgentCatalog_CustomModelPin(t *testing.T) {
	catalog, err := NewAgentCatalog(core.AgentDescriptor{
		Name:         "builder",
		DefaultModel: "claude-sonnet-4-20250514",
	})
	require.NoError(t, err)

	desc, err := catalog.Lookup("builder")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", desc.DefaultModel)
	assert.Equal(t, "text", desc.InputShape, "input shape defaults to text")
}
