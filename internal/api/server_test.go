package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/service"
)

// fakeWorkflows is a scriptable WorkflowService.
type fakeWorkflows struct {
	submitted []*core.Phase
	submitErr error
	execution *core.WorkflowExecution
	statusErr error
	cancelErr error
	cancelled []core.WorkflowID
	summaries []core.ExecutionSummary
	listErr   error
}

func (f *fakeWorkflows) Submit(_ context.Context, prompt string, phases []*core.Phase) (core.WorkflowID, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = phases
	return "wf-123", nil
}

func (f *fakeWorkflows) GetStatus(_ context.Context, id core.WorkflowID) (*core.WorkflowExecution, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.execution, nil
}

func (f *fakeWorkflows) Cancel(_ context.Context, id core.WorkflowID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeWorkflows) List(_ context.Context) ([]core.ExecutionSummary, error) {
	return f.summaries, f.listErr
}

type fakeHealth struct {
	records []service.ProviderRecord
}

func (f *fakeHealth) Snapshot() []service.ProviderRecord { return f.records }

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(&fakeWorkflows{})
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSubmitWorkflowDefaultTemplate(t *testing.T) {
	fake := &fakeWorkflows{}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/workflows/",
		[]byte(`{"prompt":"ship the feature"}`))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp SubmitWorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "wf-123", resp.ID)

	// The built-in default graph has five phases.
	require.Len(t, fake.submitted, 5)
	assert.Equal(t, "analyze", fake.submitted[0].Name)
}

func TestSubmitWorkflowCustomTemplate(t *testing.T) {
	fake := &fakeWorkflows{}
	srv := NewServer(fake)

	body, err := json.Marshal(SubmitWorkflowRequest{
		Prompt:   "review the parser",
		Template: "phases:\n  - name: review\n    tasks:\n      - agent: reviewer\n",
	})
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/workflows/", body)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fake.submitted, 1)
	assert.Equal(t, "review", fake.submitted[0].Name)
	assert.Equal(t, "review the parser", fake.submitted[0].Tasks[0].Prompt)
}

func TestSubmitWorkflowRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"prompt":`, http.StatusBadRequest},
		{"missing prompt", `{}`, http.StatusBadRequest},
		{"invalid template", `{"prompt":"go","template":"phases: ["}`, http.StatusUnprocessableEntity},
		{"template without tasks", `{"prompt":"go","template":"phases:\n  - name: p\n    tasks: []"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeWorkflows{})
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/workflows/", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetWorkflow(t *testing.T) {
	phase := core.NewPhase(0, "analyze", core.ModeSequential)
	task := core.NewAgentTask("task-1", "analyst", "study this")
	task.Status = core.TaskStatusSucceeded
	task.Retries = 1
	task.Attempts = []core.Attempt{
		{Provider: "anthropic", Outcome: core.AttemptOutcomeRetryable, Error: "rate limited"},
		{Provider: "anthropic", Outcome: core.AttemptOutcomeSuccess},
	}
	phase.AddTask(task)
	phase.Status = core.PhaseStatusCompleted

	fake := &fakeWorkflows{
		execution: core.NewWorkflowExecution("wf-123", "study this", []*core.Phase{phase}),
	}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/wf-123/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp WorkflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "wf-123", resp.ID)
	require.Len(t, resp.Phases, 1)
	assert.Equal(t, "completed", resp.Phases[0].Status)
	require.Len(t, resp.Phases[0].Tasks, 1)
	assert.Equal(t, 1, resp.Phases[0].Tasks[0].Retries)
	// Attempt history is part of the status surface.
	assert.Len(t, resp.Phases[0].Tasks[0].Attempts, 2)
}

func TestGetWorkflowNotFound(t *testing.T) {
	fake := &fakeWorkflows{statusErr: core.ErrNotFound("workflow", "missing")}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/missing/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelWorkflow(t *testing.T) {
	fake := &fakeWorkflows{}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/workflows/wf-123/cancel", nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []core.WorkflowID{"wf-123"}, fake.cancelled)
}

func TestCancelTerminalWorkflowConflicts(t *testing.T) {
	fake := &fakeWorkflows{
		cancelErr: core.ErrState(core.CodeInvalidState, "workflow already completed"),
	}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/workflows/wf-123/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListWorkflows(t *testing.T) {
	now := time.Now()
	fake := &fakeWorkflows{
		summaries: []core.ExecutionSummary{
			{ID: "wf-2", Status: core.WorkflowStatusRunning, Prompt: "b", Phases: 3, CreatedAt: now, UpdatedAt: now},
			{ID: "wf-1", Status: core.WorkflowStatusCompleted, Prompt: "a", Phases: 5, CreatedAt: now, UpdatedAt: now},
		},
	}
	srv := NewServer(fake)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []WorkflowSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "wf-2", resp[0].ID)
	assert.Equal(t, 3, resp[0].Phases)
}

func TestGetEvidence(t *testing.T) {
	wf := core.NewWorkflowExecution("wf-123", "go",
		[]*core.Phase{core.NewPhase(0, "analyze", core.ModeSequential)})
	wf.Evidence["phase_analyze"] = map[string]any{"analyst": "findings"}

	srv := NewServer(&fakeWorkflows{execution: wf})
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/wf-123/evidence", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var evidence map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evidence))
	assert.Contains(t, evidence, "phase_analyze")
}

// fakeArchive is a scriptable EvidenceArchive.
type fakeArchive struct {
	blobs map[core.WorkflowID][][]byte
	err   error
}

func (a *fakeArchive) Evidence(_ context.Context, id core.WorkflowID) ([][]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.blobs[id], nil
}

func TestListEvidenceExports(t *testing.T) {
	t.Run("without archive", func(t *testing.T) {
		srv := NewServer(&fakeWorkflows{})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/wf-123/evidence/exports", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("with archive", func(t *testing.T) {
		archive := &fakeArchive{blobs: map[core.WorkflowID][][]byte{
			"wf-123": {
				[]byte(`{"workflow_id":"wf-123","success":false}`),
				[]byte(`{"workflow_id":"wf-123","success":true}`),
			},
		}}
		srv := NewServer(&fakeWorkflows{}, WithEvidenceArchive(archive))

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/wf-123/evidence/exports", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var exports []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exports))
		require.Len(t, exports, 2)
		assert.Equal(t, false, exports[0]["success"])
		assert.Equal(t, true, exports[1]["success"])
	})

	t.Run("unrelated workflow is empty", func(t *testing.T) {
		archive := &fakeArchive{blobs: map[core.WorkflowID][][]byte{
			"wf-123": {[]byte(`{}`)},
		}}
		srv := NewServer(&fakeWorkflows{}, WithEvidenceArchive(archive))

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows/wf-999/evidence/exports", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

// fakeAgentRegistry is a fixed core.AgentRegistry.
type fakeAgentRegistry struct {
	descriptors []core.AgentDescriptor
}

func (r *fakeAgentRegistry) Lookup(name string) (core.AgentDescriptor, error) {
	for _, d := range r.descriptors {
		if d.Name == name {
			return d, nil
		}
	}
	return core.AgentDescriptor{}, core.ErrValidation(core.CodeAgentUnknown, "unknown agent: "+name)
}

func (r *fakeAgentRegistry) List() []string {
	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}
	return names
}

func TestListAgents(t *testing.T) {
	t.Run("without registry", func(t *testing.T) {
		srv := NewServer(&fakeWorkflows{})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/agents", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("with registry", func(t *testing.T) {
		registry := &fakeAgentRegistry{descriptors: []core.AgentDescriptor{
			{Name: "builder", InputShape: "text", DefaultModel: "claude-sonnet-4-20250514"},
			{Name: "reviewer", InputShape: "text"},
		}}
		srv := NewServer(&fakeWorkflows{}, WithAgentRegistry(registry))

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/agents", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var agents []AgentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
		require.Len(t, agents, 2)
		assert.Equal(t, "builder", agents[0].Name)
		assert.Equal(t, "claude-sonnet-4-20250514", agents[0].DefaultModel)
		assert.Empty(t, agents[1].DefaultModel)
	})
}

func TestListProviders(t *testing.T) {
	t.Run("without reporter", func(t *testing.T) {
		srv := NewServer(&fakeWorkflows{})
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/providers", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("with reporter", func(t *testing.T) {
		health := &fakeHealth{records: []service.ProviderRecord{
			{Name: "anthropic", Healthy: true},
			{Name: "openai", Healthy: false, ConsecutiveFailures: 3},
		}}
		srv := NewServer(&fakeWorkflows{}, WithHealthReporter(health))

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/providers", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var records []service.ProviderRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.False(t, records[1].Healthy)
	})
}
