package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daddyholnes/podplay-claude-sub001/internal/database"
	"github.com/daddyholnes/podplay-claude-sub001/internal/events"
	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/internal/orchestrator"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

// Server represents the HTTP API server
type Server struct {
	orchestrator *orchestrator.Orchestrator
	bus          events.Bus
	hub          *Hub
	metrics      *metrics.Metrics
	config       *config.Config

	// optional health-check targets
	db         *database.Database
	busChecker HealthChecker
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Health() error
}

// NewServer creates a new API server
func NewServer(orc *orchestrator.Orchestrator, bus events.Bus, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		orchestrator: orc,
		bus:          bus,
		metrics:      m,
		config:       cfg,
	}
	s.hub = NewHub(bus, m)
	return s
}

// SetBusChecker wires an optional health check for the event bus.
func (s *Server) SetBusChecker(hc HealthChecker) {
	s.busChecker = hc
}

// SetDatabase wires the optional activity log for readiness checks.
func (s *Server) SetDatabase(db *database.Database) {
	s.db = db
}

// Hub returns the WebSocket hub so main can start its event pump.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleHealthLive)
	mux.HandleFunc("/health/ready", s.handleHealthReady)
	mux.Handle("/metrics", promhttp.Handler())

	// Mama Bear chat
	mux.HandleFunc("/api/mama-bear/chat", s.handleChat)
	mux.HandleFunc("/api/mama-bear/agents/status", s.handleAgentsStatus)

	// Computer use
	mux.HandleFunc("/api/computer-use/execute", s.handleExecute)
	mux.HandleFunc("/api/computer-use/workflows", s.handleListWorkflows)
	mux.HandleFunc("/api/computer-use/workflows/", s.handleRunWorkflow)
	mux.HandleFunc("/api/computer-use/sessions", s.handleSessions)
	mux.HandleFunc("/api/computer-use/sessions/", s.handleSession)

	// WebSocket rooms
	mux.HandleFunc("/ws/computer-use", s.hub.HandleWebSocket)

	// Apply middleware
	handler := s.metricsMiddleware(mux)
	handler = s.corsMiddleware(handler)
	handler = s.authMiddleware(handler)

	return handler
}

// Middleware

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and latency per route.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades need the raw ResponseWriter (http.Hijacker).
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path),
				strconv.Itoa(rec.status), time.Since(start).Seconds())
		}
	})
}

// routeLabel collapses id-bearing paths to a bounded label set.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/computer-use/sessions/") {
		if strings.HasSuffix(path, "/stop") {
			return "/api/computer-use/sessions/{id}/stop"
		}
		return "/api/computer-use/sessions/{id}"
	}
	if strings.HasPrefix(path, "/api/computer-use/workflows/") {
		return "/api/computer-use/workflows/{name}"
	}
	return path
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Security.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.config.Security.AllowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API keys or JWT bearer tokens.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Probes and metrics stay open for schedulers and scrapers.
		if r.URL.Path == "/health" ||
			strings.HasPrefix(r.URL.Path, "/health/") ||
			r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if !s.config.Security.EnableAuth {
			next.ServeHTTP(w, r)
			return
		}

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			for _, key := range s.config.Security.APIKeys {
				if key == apiKey {
					next.ServeHTTP(w, r)
					return
				}
			}
			s.respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			if err := s.validateJWT(strings.TrimPrefix(auth, "Bearer ")); err != nil {
				s.respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		s.respondError(w, http.StatusUnauthorized, "missing credentials")
	})
}

func (s *Server) validateJWT(tokenString string) error {
	if s.config.Security.JWTSecret == "" {
		return fmt.Errorf("JWT auth not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token invalid")
	}
	return nil
}

// Helper functions

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseJSON parses JSON request body
func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// extractID extracts the first path element after a prefix
func (s *Server) extractID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.TrimSuffix(id, "/")

	parts := strings.Split(id, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return id
}
