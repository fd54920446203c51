// Package api provides HTTP REST API handlers for the cascade workflow
// system.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/cascade-ai/internal/service"
)

// WorkflowService is the engine surface the API depends on.
type WorkflowService interface {
	Submit(ctx context.Context, prompt string, phases []*core.Phase) (core.WorkflowID, error)
	GetStatus(ctx context.Context, id core.WorkflowID) (*core.WorkflowExecution, error)
	Cancel(ctx context.Context, id core.WorkflowID) error
	List(ctx context.Context) ([]core.ExecutionSummary, error)
}

// HealthReporter exposes provider health for the providers endpoint.
type HealthReporter interface {
	Snapshot() []service.ProviderRecord
}

// EvidenceArchive reads back the evidence bundles the engine exported for
// a workflow, oldest first.
type EvidenceArchive interface {
	Evidence(ctx context.Context, workflowID core.WorkflowID) ([][]byte, error)
}

// Server provides HTTP REST API endpoints for workflow management.
type Server struct {
	router      chi.Router
	workflows   WorkflowService
	health      HealthReporter
	agents      core.AgentRegistry
	archive     EvidenceArchive
	logger      *logging.Logger
	corsOrigins []string
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCORSOrigins restricts allowed CORS origins.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithHealthReporter wires the provider health endpoint.
func WithHealthReporter(h HealthReporter) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// WithAgentRegistry wires the agent listing endpoint.
func WithAgentRegistry(agents core.AgentRegistry) ServerOption {
	return func(s *Server) {
		s.agents = agents
	}
}

// WithEvidenceArchive wires the exported-evidence endpoint.
func WithEvidenceArchive(a EvidenceArchive) ServerOption {
	return func(s *Server) {
		s.archive = a
	}
}

// NewServer creates a new API server around a workflow service.
func NewServer(workflows WorkflowService, opts ...ServerOption) *Server {
	s := &Server{
		workflows:   workflows,
		logger:      logging.NewNop(),
		corsOrigins: []string{"*"},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleSubmitWorkflow)

			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Post("/cancel", s.handleCancelWorkflow)
				r.Get("/evidence", s.handleGetEvidence)
				r.Get("/evidence/exports", s.handleListEvidenceExports)
			})
		})

		r.Get("/providers", s.handleListProviders)
		r.Get("/agents", s.handleListAgents)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps a domain error onto an HTTP status.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status, message := httpStatusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.respondError(w, status, message)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListProviders returns the provider health registry snapshot.
func (s *Server) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, []service.ProviderRecord{})
		return
	}
	records := s.health.Snapshot()
	if records == nil {
		records = []service.ProviderRecord{}
	}
	s.respondJSON(w, http.StatusOK, records)
}

// AgentResponse describes one registered agent.
type AgentResponse struct {
	Name         string `json:"name"`
	InputShape   string `json:"input_shape"`
	DefaultModel string `json:"default_model,omitempty"`
}

// handleListAgents returns the agent registry contents.
func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	response := []AgentResponse{}
	if s.agents != nil {
		for _, name := range s.agents.List() {
			desc, err := s.agents.Lookup(name)
			if err != nil {
				continue
			}
			response = append(response, AgentResponse{
				Name:         desc.Name,
				InputShape:   desc.InputShape,
				DefaultModel: desc.DefaultModel,
			})
		}
	}
	s.respondJSON(w, http.StatusOK, response)
}

// ListenAndServe starts the HTTP server and shuts it down when the context
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
