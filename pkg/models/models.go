package models

import (
	"time"
)

// VariantID identifies a Mama Bear agent variant.
type VariantID string

const (
	VariantScoutCommander       VariantID = "scout-commander"
	VariantResearchSpecialist   VariantID = "research-specialist"
	VariantCodeReviewBear       VariantID = "code-review-bear"
	VariantDevOpsSpecialist     VariantID = "devops-specialist"
	VariantModelCoordinator     VariantID = "model-coordinator"
	VariantToolCurator          VariantID = "tool-curator"
	VariantIntegrationArchitect VariantID = "integration-architect"
)

// AgentState represents the lifecycle state of an agent variant.
type AgentState string

const (
	AgentStateIdle  AgentState = "idle"
	AgentStateBusy  AgentState = "busy"
	AgentStateError AgentState = "error"
)

// AgentStatus is the externally visible state of one agent variant.
type AgentStatus struct {
	Variant      VariantID  `json:"variant"`
	DisplayName  string     `json:"display_name"`
	State        AgentState `json:"state"`
	RequestCount int64      `json:"request_count"`
	ErrorCount   int64      `json:"error_count"`
	LastUsed     time.Time  `json:"last_used,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// ChatRequest is the body of POST /api/mama-bear/chat.
type ChatRequest struct {
	Message string    `json:"message"`
	UserID  string    `json:"user_id"`
	Variant VariantID `json:"variant,omitempty"` // explicit override, skips routing
}

// ChatResponse is the reply to a routed chat message.
type ChatResponse struct {
	Response     string    `json:"response"`
	Variant      VariantID `json:"variant"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	MemoryCount  int       `json:"memory_count"` // memories recalled for context
}

// TaskRequest is the body of POST /api/computer-use/execute.
type TaskRequest struct {
	Task      string `json:"task"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"` // reuse an existing session
}

// TaskResult describes the outcome of a computer-use task or workflow.
type TaskResult struct {
	TaskID     string       `json:"task_id"`
	SessionID  string       `json:"session_id"`
	Success    bool         `json:"success"`
	Output     string       `json:"output,omitempty"`
	Error      string       `json:"error,omitempty"`
	Steps      []StepResult `json:"steps,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// StepResult is the outcome of a single workflow step.
type StepResult struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// SessionState represents the local lifecycle view of a sandbox session.
// The remote instance is the source of truth; this is bookkeeping only.
type SessionState string

const (
	SessionStarting   SessionState = "starting"
	SessionRunning    SessionState = "running"
	SessionPaused     SessionState = "paused"
	SessionTerminated SessionState = "terminated"
)

// Session binds a local session id to a remote sandbox instance.
type Session struct {
	ID         string       `json:"id"`
	InstanceID string       `json:"instance_id"`
	UserID     string       `json:"user_id"`
	Kind       string       `json:"kind"` // "ubuntu" or "browser"
	State      SessionState `json:"state"`
	StreamURL  string       `json:"stream_url,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	StoppedAt  *time.Time   `json:"stopped_at,omitempty"`
}

// Event is the envelope published on the event bus and fanned out to
// WebSocket room members.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event types published by the orchestrator and sandbox manager.
const (
	EventSessionCreated  = "session.created"
	EventSessionStopped  = "session.stopped"
	EventTaskStarted     = "task.started"
	EventTaskCompleted   = "task.completed"
	EventTaskFailed      = "task.failed"
	EventChatRouted      = "chat.routed"
	EventWorkflowStarted = "workflow.started"
)
