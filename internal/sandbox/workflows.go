package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// ErrWorkflowNotFound is returned for an unknown workflow name.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Step is a single named action executed against a session's instance.
type Step struct {
	Name string
	Run  func(ctx context.Context, api API, instanceID string, params map[string]string) (string, error)
}

// Workflow is a named ordered list of steps.
type Workflow struct {
	Name        string
	Description string
	Steps       []Step
}

var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

// Workflows returns the predefined named workflows.
func Workflows() map[string]*Workflow {
	return map[string]*Workflow{
		"research": {
			Name:        "research",
			Description: "Open a URL in the browser and capture the rendered page",
			Steps: []Step{
				{Name: "navigate", Run: stepNavigate},
				{Name: "settle", Run: stepSettle},
				{Name: "screenshot", Run: stepScreenshot},
			},
		},
		"web-scrape": {
			Name:        "web-scrape",
			Description: "Navigate to a URL, capture the page, and save a snapshot file",
			Steps: []Step{
				{Name: "navigate", Run: stepNavigate},
				{Name: "settle", Run: stepSettle},
				{Name: "screenshot", Run: stepScreenshot},
				{Name: "save-snapshot", Run: stepSaveSnapshot},
			},
		},
		"form-fill": {
			Name:        "form-fill",
			Description: "Navigate to a form, type the provided text, and capture the result",
			Steps: []Step{
				{Name: "navigate", Run: stepNavigate},
				{Name: "type-text", Run: stepTypeText},
				{Name: "screenshot", Run: stepScreenshot},
			},
		},
		"file-organize": {
			Name:        "file-organize",
			Description: "Write a manifest file on the instance and read it back",
			Steps: []Step{
				{Name: "write-manifest", Run: stepWriteManifest},
				{Name: "read-manifest", Run: stepReadManifest},
			},
		},
	}
}

// WorkflowNames returns the available workflow names in stable order.
func WorkflowNames() []string {
	wfs := Workflows()
	names := make([]string, 0, len(wfs))
	for name := range wfs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunWorkflow executes a named workflow against a session. Execution stops at
// the first failing step; completed steps are reported either way.
func (m *Manager) RunWorkflow(ctx context.Context, name, sessionID string, params map[string]string) (*models.TaskResult, error) {
	workflow, ok := Workflows()[name]
	if !ok {
		return nil, ErrWorkflowNotFound
	}

	instanceID, err := m.InstanceID(sessionID)
	if err != nil {
		return nil, err
	}
	m.Touch(sessionID)

	result := &models.TaskResult{
		TaskID:    uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now(),
	}

	m.publish(ctx, models.Event{
		Type:      models.EventWorkflowStarted,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"workflow": name, "task_id": result.TaskID},
	})

	for _, step := range workflow.Steps {
		stepStart := time.Now()
		detail, err := step.Run(ctx, m.api, instanceID, params)
		stepResult := models.StepResult{
			Name:       step.Name,
			Success:    err == nil,
			Detail:     detail,
			DurationMS: time.Since(stepStart).Milliseconds(),
		}
		if err != nil {
			stepResult.Detail = err.Error()
			result.Steps = append(result.Steps, stepResult)
			result.Error = fmt.Sprintf("step %q failed: %v", step.Name, err)
			result.FinishedAt = time.Now()
			return result, nil
		}
		result.Steps = append(result.Steps, stepResult)
	}

	result.Success = true
	result.Output = fmt.Sprintf("workflow %q completed, %d steps", name, len(result.Steps))
	result.FinishedAt = time.Now()
	return result, nil
}

// ExecuteTask runs a free-text computer-use task. The task text is scanned
// for a URL to navigate to; the instance display is captured either way and
// returned as the task output.
func (m *Manager) ExecuteTask(ctx context.Context, sessionID, task string) (*models.TaskResult, error) {
	instanceID, err := m.InstanceID(sessionID)
	if err != nil {
		return nil, err
	}
	m.Touch(sessionID)

	result := &models.TaskResult{
		TaskID:    uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now(),
	}

	if url := urlPattern.FindString(task); url != "" {
		stepStart := time.Now()
		err := m.api.BrowserNavigate(ctx, instanceID, url)
		result.Steps = append(result.Steps, models.StepResult{
			Name:       "navigate",
			Success:    err == nil,
			Detail:     url,
			DurationMS: time.Since(stepStart).Milliseconds(),
		})
		if err != nil {
			result.Error = err.Error()
			result.FinishedAt = time.Now()
			return result, nil
		}
	}

	stepStart := time.Now()
	shot, err := m.api.TakeScreenshot(ctx, instanceID)
	if err != nil {
		result.Steps = append(result.Steps, models.StepResult{
			Name:       "screenshot",
			DurationMS: time.Since(stepStart).Milliseconds(),
		})
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result, nil
	}
	result.Steps = append(result.Steps, models.StepResult{
		Name:       "screenshot",
		Success:    true,
		DurationMS: time.Since(stepStart).Milliseconds(),
	})

	result.Success = true
	result.Output = shot.Base64Image
	result.FinishedAt = time.Now()
	return result, nil
}

// Step implementations

func stepNavigate(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	url := params["url"]
	if url == "" {
		return "", fmt.Errorf("workflow requires a %q parameter", "url")
	}
	if err := api.BrowserNavigate(ctx, instanceID, url); err != nil {
		return "", err
	}
	return url, nil
}

func stepSettle(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	// Give the page a moment to render before capture.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
	}
	return "waited 2s", nil
}

func stepScreenshot(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	shot, err := api.TakeScreenshot(ctx, instanceID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("captured %d bytes", len(shot.Base64Image)), nil
}

func stepSaveSnapshot(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	path := params["path"]
	if path == "" {
		path = "/tmp/snapshot.txt"
	}
	content := fmt.Sprintf("snapshot of %s at %s\n", params["url"], time.Now().Format(time.RFC3339))
	if err := api.WriteFile(ctx, instanceID, path, content); err != nil {
		return "", err
	}
	return path, nil
}

func stepTypeText(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	text := params["text"]
	if text == "" {
		return "", fmt.Errorf("workflow requires a %q parameter", "text")
	}
	err := api.Computer(ctx, instanceID, ComputerAction{Action: "type", Text: text})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("typed %d characters", len(text)), nil
}

func stepWriteManifest(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	dir := params["dir"]
	if dir == "" {
		dir = "/home/user"
	}
	path := strings.TrimSuffix(dir, "/") + "/.podplay-manifest"
	content := fmt.Sprintf("organized by podplay at %s\n", time.Now().Format(time.RFC3339))
	if err := api.WriteFile(ctx, instanceID, path, content); err != nil {
		return "", err
	}
	return path, nil
}

func stepReadManifest(ctx context.Context, api API, instanceID string, params map[string]string) (string, error) {
	dir := params["dir"]
	if dir == "" {
		dir = "/home/user"
	}
	path := strings.TrimSuffix(dir, "/") + "/.podplay-manifest"
	content, err := api.ReadFile(ctx, instanceID, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
