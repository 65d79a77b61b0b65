package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/daddyholnes/podplay-claude-sub001/internal/sandbox"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// handleExecute handles POST /api/computer-use/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.TaskRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orchestrator.ExecuteTask(r.Context(), req)
	if err != nil {
		s.respondSandboxError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleListWorkflows handles GET /api/computer-use/workflows
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": sandbox.WorkflowNames(),
	})
}

// handleRunWorkflow handles POST /api/computer-use/workflows/{name}
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := s.extractID(r.URL.Path, "/api/computer-use/workflows")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "workflow name required")
		return
	}

	var req struct {
		SessionID string            `json:"session_id,omitempty"`
		UserID    string            `json:"user_id,omitempty"`
		Params    map[string]string `json:"params,omitempty"`
	}
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orchestrator.RunWorkflow(r.Context(), name, req.SessionID, req.UserID, req.Params)
	if err != nil {
		s.respondSandboxError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleSessions handles /api/computer-use/sessions (create and list)
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			UserID string `json:"user_id,omitempty"`
			Kind   string `json:"instance_type,omitempty"`
		}
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := s.orchestrator.Sandbox().CreateSession(r.Context(), req.UserID, req.Kind)
		if err != nil {
			s.respondSandboxError(w, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, session)

	case http.MethodGet:
		sessions := s.orchestrator.Sandbox().ListSessions()
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		})

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSession handles /api/computer-use/sessions/{id} and its /stop action
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := s.extractID(r.URL.Path, "/api/computer-use/sessions")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "session id required")
		return
	}

	if strings.HasSuffix(r.URL.Path, "/stop") {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.orchestrator.Sandbox().StopSession(r.Context(), id); err != nil {
			s.respondSandboxError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "stopped", "session_id": id})
		return
	}

	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	session, err := s.orchestrator.Sandbox().GetSession(r.Context(), id)
	if err != nil {
		s.respondSandboxError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

// respondSandboxError maps sandbox and task errors to HTTP statuses.
func (s *Server) respondSandboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sandbox.ErrSessionNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sandbox.ErrWorkflowNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sandbox.ErrSessionLimit):
		s.respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.respondOrchestratorError(w, err)
	}
}
