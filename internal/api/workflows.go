package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/config"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// SubmitWorkflowRequest is the request body for submitting a workflow.
// Template, when present, is a YAML workflow template; otherwise the
// built-in default graph is used.
type SubmitWorkflowRequest struct {
	Prompt   string `json:"prompt"`
	Template string `json:"template,omitempty"`
}

// SubmitWorkflowResponse is returned after a successful submission.
type SubmitWorkflowResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WorkflowResponse is the API representation of a workflow execution.
type WorkflowResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Prompt    string          `json:"prompt"`
	Error     string          `json:"error,omitempty"`
	Phases    []PhaseResponse `json:"phases"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PhaseResponse summarizes one phase of a workflow.
type PhaseResponse struct {
	Index     int            `json:"index"`
	Name      string         `json:"name"`
	Mode      string         `json:"mode"`
	Status    string         `json:"status"`
	Optional  bool           `json:"optional"`
	DependsOn []int          `json:"depends_on,omitempty"`
	Error     string         `json:"error,omitempty"`
	Tasks     []TaskResponse `json:"tasks"`
}

// TaskResponse summarizes one agent task, including its attempt history.
type TaskResponse struct {
	ID        string         `json:"id"`
	Agent     string         `json:"agent"`
	Status    string         `json:"status"`
	Retries   int            `json:"retries"`
	Attempts  []core.Attempt `json:"attempts,omitempty"`
	TokensIn  int            `json:"tokens_in"`
	TokensOut int            `json:"tokens_out"`
	Error     string         `json:"error,omitempty"`
}

// WorkflowSummaryResponse is a listing row.
type WorkflowSummaryResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Prompt    string    `json:"prompt"`
	Phases    int       `json:"phases"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleSubmitWorkflow validates the request, materializes the phase graph,
// and submits it to the engine.
func (s *Server) handleSubmitWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	tpl := config.DefaultTemplate()
	if req.Template != "" {
		parsed, err := config.ParseTemplate([]byte(req.Template))
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		tpl = parsed
	}

	id, err := s.workflows.Submit(r.Context(), req.Prompt, tpl.Materialize(req.Prompt))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, SubmitWorkflowResponse{
		ID:     string(id),
		Status: string(core.WorkflowStatusRunning),
	})
}

// handleListWorkflows returns summaries of all known workflows.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.workflows.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	response := make([]WorkflowSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		response = append(response, WorkflowSummaryResponse{
			ID:        string(sum.ID),
			Status:    string(sum.Status),
			Prompt:    sum.Prompt,
			Phases:    sum.Phases,
			CreatedAt: sum.CreatedAt,
			UpdatedAt: sum.UpdatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, response)
}

// handleGetWorkflow returns the full status of one workflow.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "workflow ID is required")
		return
	}

	wf, err := s.workflows.GetStatus(r.Context(), core.WorkflowID(id))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, workflowToResponse(wf))
}

// handleCancelWorkflow requests cooperative cancellation.
func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "workflow ID is required")
		return
	}

	if err := s.workflows.Cancel(r.Context(), core.WorkflowID(id)); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "cancelling",
	})
}

// handleGetEvidence returns the workflow's merged evidence map.
func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "workflow ID is required")
		return
	}

	wf, err := s.workflows.GetStatus(r.Context(), core.WorkflowID(id))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	evidence := wf.Evidence
	if evidence == nil {
		evidence = map[string]any{}
	}
	s.respondJSON(w, http.StatusOK, evidence)
}

// handleListEvidenceExports returns the evidence bundles the engine wrote
// for the workflow, oldest first. Each bundle is the JSON result document
// exported when the workflow reached a terminal status.
func (s *Server) handleListEvidenceExports(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "workflow ID is required")
		return
	}
	if s.archive == nil {
		s.respondJSON(w, http.StatusOK, []json.RawMessage{})
		return
	}

	blobs, err := s.archive.Evidence(r.Context(), core.WorkflowID(id))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	exports := make([]json.RawMessage, 0, len(blobs))
	for _, b := range blobs {
		exports = append(exports, json.RawMessage(b))
	}
	s.respondJSON(w, http.StatusOK, exports)
}

func workflowToResponse(wf *core.WorkflowExecution) WorkflowResponse {
	resp := WorkflowResponse{
		ID:        string(wf.ID),
		Status:    string(wf.Status),
		Prompt:    wf.Prompt,
		Error:     wf.Error,
		Phases:    make([]PhaseResponse, 0, len(wf.Phases)),
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}
	for _, p := range wf.Phases {
		pr := PhaseResponse{
			Index:     p.Index,
			Name:      p.Name,
			Mode:      string(p.Mode),
			Status:    string(p.Status),
			Optional:  p.Optional,
			DependsOn: p.DependsOn,
			Error:     p.Error,
			Tasks:     make([]TaskResponse, 0, len(p.Tasks)),
		}
		for _, t := range p.Tasks {
			pr.Tasks = append(pr.Tasks, TaskResponse{
				ID:        string(t.ID),
				Agent:     t.Agent,
				Status:    string(t.Status),
				Retries:   t.Retries,
				Attempts:  t.Attempts,
				TokensIn:  t.TokensIn,
				TokensOut: t.TokensOut,
				Error:     t.Error,
			})
		}
		resp.Phases = append(resp.Phases, pr)
	}
	return resp
}
