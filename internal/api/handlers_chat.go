package api

import (
	"errors"
	"net/http"

	"github.com/daddyholnes/podplay-claude-sub001/internal/orchestrator"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// handleChat handles POST /api/mama-bear/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ChatRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.orchestrator.Chat(r.Context(), req)
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleAgentsStatus handles GET /api/mama-bear/agents/status
func (s *Server) handleAgentsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	statuses := s.orchestrator.Registry().Statuses()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"agents": statuses,
		"count":  len(statuses),
	})
}

// respondOrchestratorError maps orchestration errors to HTTP statuses.
func (s *Server) respondOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownVariant):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrUpstream):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
