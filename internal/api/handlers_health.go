package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealthLive handles GET /health/live
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealthReady handles GET /health/ready. Readiness fails when a wired
// dependency is unreachable.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.dependencyChecks(r.Context())

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	s.respondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

// handleHealth handles GET /health with a detailed dependency view.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.dependencyChecks(r.Context())

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"service":   "podplay",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"agents":    len(s.orchestrator.Registry().Variants()),
		"sessions":  len(s.orchestrator.Sandbox().ListSessions()),
		"checks":    checks,
	})
}

func (s *Server) dependencyChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string)
	healthy := true

	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.db.DB().PingContext(pingCtx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
		cancel()
	}

	if s.busChecker != nil {
		if err := s.busChecker.Health(); err != nil {
			checks["events"] = err.Error()
			healthy = false
		} else {
			checks["events"] = "ok"
		}
	}

	return checks, healthy
}
