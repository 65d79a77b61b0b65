// Package orchestrator is the narrow boundary between the HTTP surface and
// the external services: request → agent selection → external API call. The
// memory store, model manager, and sandbox manager are injected so each can
// be substituted behind this interface.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/daddyholnes/podplay-claude-sub001/internal/agents"
	"github.com/daddyholnes/podplay-claude-sub001/internal/memory"
	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/internal/model"
	"github.com/daddyholnes/podplay-claude-sub001/internal/sandbox"
	"github.com/daddyholnes/podplay-claude-sub001/internal/telemetry"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// ActivityLog records chat and task activity for audit. The Postgres store
// satisfies this; a nil log disables recording.
type ActivityLog interface {
	RecordChat(ctx context.Context, userID string, variant, model string, success bool) error
	RecordTask(ctx context.Context, userID, sessionID, taskID string, success bool) error
}

// Publisher receives orchestration events.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Orchestrator holds the references to the memory client, model manager, and
// sandbox manager, and performs keyword-based routing between them.
type Orchestrator struct {
	registry   *agents.Registry
	inferencer model.Inferencer
	memory     memory.Store
	sandbox    *sandbox.Manager
	publisher  Publisher
	metrics    *metrics.Metrics
	activity   ActivityLog

	defaultVariant models.VariantID
}

// Options bundles the orchestrator's collaborators. Publisher and Activity
// may be nil.
type Options struct {
	Registry       *agents.Registry
	Inferencer     model.Inferencer
	Memory         memory.Store
	Sandbox        *sandbox.Manager
	Publisher      Publisher
	Metrics        *metrics.Metrics
	Activity       ActivityLog
	DefaultVariant models.VariantID
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires an agent registry")
	}
	if opts.Inferencer == nil {
		return nil, fmt.Errorf("orchestrator requires a model inferencer")
	}
	if opts.Sandbox == nil {
		return nil, fmt.Errorf("orchestrator requires a sandbox manager")
	}

	defaultVariant := opts.DefaultVariant
	if defaultVariant == "" {
		defaultVariant = models.VariantScoutCommander
	}
	if !opts.Registry.Has(defaultVariant) {
		return nil, fmt.Errorf("%w: default variant %q", ErrUnknownVariant, defaultVariant)
	}

	return &Orchestrator{
		registry:       opts.Registry,
		inferencer:     opts.Inferencer,
		memory:         opts.Memory,
		sandbox:        opts.Sandbox,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		activity:       opts.Activity,
		defaultVariant: defaultVariant,
	}, nil
}

// Registry exposes the agent registry for status reporting.
func (o *Orchestrator) Registry() *agents.Registry {
	return o.registry
}

// Sandbox exposes the sandbox manager for session handlers.
func (o *Orchestrator) Sandbox() *sandbox.Manager {
	return o.sandbox
}

// Chat routes a message to an agent variant and returns its reply. Messages
// matching computer-use keywords run as a one-shot sandbox task instead,
// fronted by the default variant.
func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	routeStart := time.Now()
	route := o.route(req)
	if telemetry.ChatsRouted != nil {
		telemetry.ChatsRouted.Add(ctx, 1)
	}
	if telemetry.RoutingLatency != nil {
		telemetry.RoutingLatency.Record(ctx, time.Since(routeStart).Seconds())
	}
	if route.ComputerUse {
		return o.chatViaComputerUse(ctx, req)
	}

	variant := route.Variant
	persona, err := o.registry.Get(variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	o.registry.MarkBusy(variant)
	start := time.Now()

	resp, err := o.chatWithVariant(ctx, persona, req)
	if err != nil {
		o.registry.MarkError(variant, err)
		o.recordChat(ctx, req.UserID, string(variant), "", false, start)
		return nil, err
	}

	o.registry.MarkIdle(variant)
	o.recordChat(ctx, req.UserID, string(variant), resp.Model, true, start)

	o.publish(ctx, models.Event{
		Type:   models.EventChatRouted,
		UserID: req.UserID,
		Payload: map[string]interface{}{
			"variant": string(variant),
			"matched": route.Matched,
			"model":   resp.Model,
		},
	})

	return resp, nil
}

func (o *Orchestrator) route(req models.ChatRequest) Route {
	if req.Variant != "" {
		return Route{Variant: req.Variant}
	}

	route := RouteMessage(req.Message, o.defaultVariant)
	if o.metrics != nil {
		target := string(route.Variant)
		if route.ComputerUse {
			target = "computer-use"
		}
		matched := "default"
		if route.Matched != "" {
			matched = "keyword"
		}
		o.metrics.RoutingDecisions.WithLabelValues(target, matched).Inc()
	}
	return route
}

func (o *Orchestrator) chatWithVariant(ctx context.Context, persona *agents.Persona, req models.ChatRequest) (*models.ChatResponse, error) {
	systemPrompt := persona.SystemPrompt
	memoryCount := 0

	// Memory recall is best-effort: a memory outage degrades context, it
	// does not fail the chat.
	if o.memory != nil && req.UserID != "" {
		memories, err := o.memory.Search(ctx, req.UserID, req.Message)
		if err != nil {
			log.Printf("[Orchestrator] Memory search failed for user %s: %v", req.UserID, err)
			if o.metrics != nil {
				o.metrics.MemoryRecalls.WithLabelValues("false").Inc()
			}
		} else if len(memories) > 0 {
			var sb strings.Builder
			sb.WriteString(systemPrompt)
			sb.WriteString("\n\nWhat you remember about this user:\n")
			for _, m := range memories {
				sb.WriteString("- ")
				sb.WriteString(m.Text)
				sb.WriteString("\n")
			}
			systemPrompt = sb.String()
			memoryCount = len(memories)
			if o.metrics != nil {
				o.metrics.MemoryRecalls.WithLabelValues("true").Inc()
			}
		}
	}

	var history []model.Message
	if o.memory != nil && req.UserID != "" {
		for _, ex := range o.memory.RecentContext(ctx, req.UserID) {
			history = append(history,
				model.Message{Role: "user", Content: ex.User},
				model.Message{Role: "assistant", Content: ex.Assistant},
			)
		}
	}

	start := time.Now()
	completion, err := o.inferencer.Complete(ctx, systemPrompt, history, req.Message)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordModelRequest("unknown", false, time.Since(start).Seconds(), 0, 0)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if o.metrics != nil {
		o.metrics.RecordModelRequest(completion.Model, true, time.Since(start).Seconds(),
			completion.InputTokens, completion.OutputTokens)
	}

	if o.memory != nil && req.UserID != "" {
		if err := o.memory.AddExchange(ctx, req.UserID, req.Message, completion.Text); err != nil {
			log.Printf("[Orchestrator] Failed to persist exchange for user %s: %v", req.UserID, err)
		}
	}

	return &models.ChatResponse{
		Response:     completion.Text,
		Variant:      persona.Variant,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		MemoryCount:  memoryCount,
	}, nil
}

// chatViaComputerUse handles chat messages that route to the sandbox: a
// one-shot session is created, the task runs, and the session is stopped.
func (o *Orchestrator) chatViaComputerUse(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	session, err := o.sandbox.CreateSession(ctx, req.UserID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		if err := o.sandbox.StopSession(context.WithoutCancel(ctx), session.ID); err != nil {
			log.Printf("[Orchestrator] Failed to stop one-shot session %s: %v", session.ID, err)
		}
	}()

	result, err := o.ExecuteTask(ctx, models.TaskRequest{
		Task:      req.Message,
		UserID:    req.UserID,
		SessionID: session.ID,
	})
	if err != nil {
		return nil, err
	}

	response := fmt.Sprintf("Ran your computer-use task in session %s.", session.ID)
	if !result.Success {
		response = fmt.Sprintf("Computer-use task failed: %s", result.Error)
	}

	return &models.ChatResponse{
		Response: response,
		Variant:  o.defaultVariant,
	}, nil
}

// ExecuteTask runs a free-text computer-use task, creating a session when the
// request does not name one.
func (o *Orchestrator) ExecuteTask(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		session, err := o.sandbox.CreateSession(ctx, req.UserID, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		sessionID = session.ID
	}

	o.publish(ctx, models.Event{
		Type:      models.EventTaskStarted,
		SessionID: sessionID,
		UserID:    req.UserID,
		Payload:   map[string]interface{}{"task": req.Task},
	})
	if telemetry.TasksExecuted != nil {
		telemetry.TasksExecuted.Add(ctx, 1)
	}

	start := time.Now()
	result, err := o.sandbox.ExecuteTask(ctx, sessionID, req.Task)
	if err != nil {
		o.publish(ctx, models.Event{
			Type:      models.EventTaskFailed,
			SessionID: sessionID,
			UserID:    req.UserID,
			Payload:   map[string]interface{}{"error": err.Error()},
		})
		if o.metrics != nil {
			o.metrics.RecordTask(false, time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if o.metrics != nil {
		o.metrics.RecordTask(result.Success, time.Since(start).Seconds())
	}

	eventType := models.EventTaskCompleted
	if !result.Success {
		eventType = models.EventTaskFailed
	}
	o.publish(ctx, models.Event{
		Type:      eventType,
		SessionID: sessionID,
		UserID:    req.UserID,
		Payload:   map[string]interface{}{"task_id": result.TaskID},
	})

	if o.activity != nil {
		if err := o.activity.RecordTask(ctx, req.UserID, sessionID, result.TaskID, result.Success); err != nil {
			log.Printf("[Orchestrator] Failed to record task activity: %v", err)
		}
	}

	return result, nil
}

// RunWorkflow executes a named predefined workflow in a session, creating one
// when the request does not name a session.
func (o *Orchestrator) RunWorkflow(ctx context.Context, name, sessionID, userID string, params map[string]string) (*models.TaskResult, error) {
	// Reject unknown names before touching the sandbox so a bad request
	// never starts a remote instance.
	if _, ok := sandbox.Workflows()[name]; !ok {
		return nil, sandbox.ErrWorkflowNotFound
	}

	if sessionID == "" {
		session, err := o.sandbox.CreateSession(ctx, userID, "")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		sessionID = session.ID
	}

	result, err := o.sandbox.RunWorkflow(ctx, name, sessionID, params)
	if err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.WorkflowRuns.WithLabelValues(name, boolLabel(result.Success)).Inc()
	}
	if o.activity != nil {
		if err := o.activity.RecordTask(ctx, userID, sessionID, result.TaskID, result.Success); err != nil {
			log.Printf("[Orchestrator] Failed to record workflow activity: %v", err)
		}
	}

	return result, nil
}

func (o *Orchestrator) recordChat(ctx context.Context, userID, variant, mdl string, success bool, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordChat(variant, success, time.Since(start).Seconds())
	}
	if o.activity != nil {
		if err := o.activity.RecordChat(ctx, userID, variant, mdl, success); err != nil {
			log.Printf("[Orchestrator] Failed to record chat activity: %v", err)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, event models.Event) {
	if o.publisher == nil {
		return
	}
	event.Timestamp = time.Now()
	o.publisher.Publish(ctx, event)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
