package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/internal/telemetry"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// ErrSessionNotFound is returned for unknown or already-terminated sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionLimit is returned when the configured session cap is reached.
var ErrSessionLimit = errors.New("maximum concurrent sessions reached")

// Publisher receives session lifecycle events. The NATS bus satisfies this;
// a nil publisher disables event publication.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Manager tracks local sessions and forwards lifecycle calls to the remote
// sandbox API. The remote service owns all instance state.
type Manager struct {
	api       API
	publisher Publisher
	metrics   *metrics.Metrics

	sessions    map[string]*models.Session
	mu          sync.RWMutex
	maxSessions int
	sessionTTL  time.Duration
	defaultKind string

	lastActive map[string]time.Time
}

// NewManager creates a session manager over the given sandbox API.
func NewManager(api API, cfg config.SandboxConfig, publisher Publisher) *Manager {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 10
	}
	kind := cfg.DefaultKind
	if kind == "" {
		kind = "ubuntu"
	}

	return &Manager{
		api:         api,
		publisher:   publisher,
		sessions:    make(map[string]*models.Session),
		lastActive:  make(map[string]time.Time),
		maxSessions: maxSessions,
		sessionTTL:  cfg.SessionTTL,
		defaultKind: kind,
	}
}

// SetMetrics wires session gauges. May be left unset in tests.
func (m *Manager) SetMetrics(mx *metrics.Metrics) {
	m.metrics = mx
}

// CreateSession starts a remote instance and registers a local session for it.
func (m *Manager) CreateSession(ctx context.Context, userID, kind string) (*models.Session, error) {
	if kind == "" {
		kind = m.defaultKind
	}

	m.mu.RLock()
	active := 0
	for _, s := range m.sessions {
		if s.State != models.SessionTerminated {
			active++
		}
	}
	m.mu.RUnlock()
	if active >= m.maxSessions {
		return nil, ErrSessionLimit
	}

	inst, err := m.api.Start(ctx, kind)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:         uuid.New().String(),
		InstanceID: inst.ID,
		UserID:     userID,
		Kind:       kind,
		State:      models.SessionRunning,
		StreamURL:  inst.StreamURL,
		CreatedAt:  time.Now(),
	}
	if inst.Status == "deploying" {
		session.State = models.SessionStarting
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.lastActive[session.ID] = time.Now()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsTotal.WithLabelValues(kind).Inc()
		m.metrics.SessionsActive.Inc()
	}
	if telemetry.SessionsCreated != nil {
		telemetry.SessionsCreated.Add(ctx, 1)
	}

	log.Printf("[Sandbox] Created session %s (instance %s, kind %s)", session.ID, inst.ID, kind)
	m.publish(ctx, models.Event{
		Type:      models.EventSessionCreated,
		SessionID: session.ID,
		UserID:    userID,
		Payload:   map[string]interface{}{"instance_id": inst.ID, "kind": kind},
	})

	return session, nil
}

// GetSession returns the local view of a session, refreshed against the
// remote instance status.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.State == models.SessionTerminated {
		copied := *session
		return &copied, nil
	}

	inst, err := m.api.Status(ctx, session.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("instance status for session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	switch inst.Status {
	case "running":
		session.State = models.SessionRunning
	case "paused":
		session.State = models.SessionPaused
	case "terminated":
		if session.State != models.SessionTerminated {
			session.State = models.SessionTerminated
			now := time.Now()
			session.StoppedAt = &now
			if m.metrics != nil {
				m.metrics.SessionsActive.Dec()
			}
		}
	case "deploying":
		session.State = models.SessionStarting
	}
	session.StreamURL = inst.StreamURL
	copied := *session
	m.mu.Unlock()

	return &copied, nil
}

// ListSessions returns all known sessions, newest first.
func (m *Manager) ListSessions() []models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// StopSession terminates the remote instance and marks the session stopped.
// Stopping an already-terminated session is a no-op.
func (m *Manager) StopSession(ctx context.Context, sessionID string) error {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	if session.State == models.SessionTerminated {
		return nil
	}

	if err := m.api.Stop(ctx, session.InstanceID); err != nil {
		return err
	}

	// A concurrent stop (the reaper racing an HTTP stop) may have won;
	// only the caller that performs the transition decrements and publishes.
	m.mu.Lock()
	if session.State == models.SessionTerminated {
		m.mu.Unlock()
		return nil
	}
	session.State = models.SessionTerminated
	now := time.Now()
	session.StoppedAt = &now
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsActive.Dec()
	}

	log.Printf("[Sandbox] Stopped session %s (instance %s)", sessionID, session.InstanceID)
	m.publish(ctx, models.Event{
		Type:      models.EventSessionStopped,
		SessionID: sessionID,
		UserID:    session.UserID,
	})

	return nil
}

// Touch records activity on a session so the reaper does not collect it.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	m.lastActive[sessionID] = time.Now()
	m.mu.Unlock()
}

// InstanceID resolves a session id to its remote instance id.
func (m *Manager) InstanceID(sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok || session.State == models.SessionTerminated {
		return "", ErrSessionNotFound
	}
	return session.InstanceID, nil
}

// API exposes the underlying sandbox API for task and workflow execution.
func (m *Manager) API() API {
	return m.api
}

// StartReaper runs the idle-session reaper until ctx is cancelled. Sessions
// idle longer than the configured TTL are stopped remotely.
func (m *Manager) StartReaper(ctx context.Context) {
	if m.sessionTTL <= 0 {
		return
	}

	ticker := time.NewTicker(m.sessionTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle(ctx)
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.sessionTTL)

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.State == models.SessionTerminated {
			continue
		}
		if last, ok := m.lastActive[id]; ok && last.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		log.Printf("[Sandbox] Reaping idle session %s", id)
		if err := m.StopSession(ctx, id); err != nil {
			log.Printf("[Sandbox] Failed to reap session %s: %v", id, err)
		}
	}
}

func (m *Manager) publish(ctx context.Context, event models.Event) {
	if m.publisher == nil {
		return
	}
	event.Timestamp = time.Now()
	m.publisher.Publish(ctx, event)
}
