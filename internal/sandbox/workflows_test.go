package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestSession(t *testing.T, m *Manager) string {
	t.Helper()
	session, err := m.CreateSession(context.Background(), "u", "")
	if err != nil {
		t.Fatal(err)
	}
	return session.ID
}

func TestRunWorkflow_Unknown(t *testing.T) {
	m := NewManager(newFakeAPI(), testConfig(), nil)
	id := newTestSession(t, m)

	_, err := m.RunWorkflow(context.Background(), "make-coffee", id, nil)
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestRunWorkflow_UnknownSession(t *testing.T) {
	m := NewManager(newFakeAPI(), testConfig(), nil)

	_, err := m.RunWorkflow(context.Background(), "research", "nope", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRunWorkflow_Research(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.RunWorkflow(context.Background(), "research", id,
		map[string]string{"url": "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %s", result.Error)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(result.Steps))
	}
	if result.Steps[0].Name != "navigate" || result.Steps[2].Name != "screenshot" {
		t.Errorf("unexpected step order: %v", result.Steps)
	}
	if len(api.navigated) != 1 || api.navigated[0] != "https://example.com" {
		t.Errorf("unexpected navigation: %v", api.navigated)
	}
	// The settle step waits 2s; its duration is reported in milliseconds,
	// not nanoseconds.
	settle := result.Steps[1]
	if settle.DurationMS < 1000 || settle.DurationMS > 60000 {
		t.Errorf("step duration not in milliseconds: %d", settle.DurationMS)
	}
}

func TestRunWorkflow_MissingParamStopsAtFirstStep(t *testing.T) {
	m := NewManager(newFakeAPI(), testConfig(), nil)
	id := newTestSession(t, m)

	// "research" requires a url parameter.
	result, err := m.RunWorkflow(context.Background(), "research", id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected workflow failure")
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected execution to stop at the failing step, got %d steps", len(result.Steps))
	}
	if !strings.Contains(result.Error, "navigate") {
		t.Errorf("error should name the failing step: %s", result.Error)
	}
}

func TestRunWorkflow_FileOrganizeRoundTrip(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.RunWorkflow(context.Background(), "file-organize", id,
		map[string]string{"dir": "/data"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %s", result.Error)
	}
	if _, ok := api.files["/data/.podplay-manifest"]; !ok {
		t.Error("manifest not written at the requested dir")
	}
	readStep := result.Steps[len(result.Steps)-1]
	if readStep.Name != "read-manifest" || !readStep.Success {
		t.Errorf("read-manifest step failed: %+v", readStep)
	}
}

func TestRunWorkflow_FormFillTypesText(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.RunWorkflow(context.Background(), "form-fill", id,
		map[string]string{"url": "https://example.com/form", "text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %s", result.Error)
	}
	if len(api.typed) != 1 || api.typed[0] != "hello" {
		t.Errorf("expected text typed, got %v", api.typed)
	}
}

func TestExecuteTask_NavigatesWhenURLPresent(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.ExecuteTask(context.Background(), id, "open https://go.dev and capture it")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("task failed: %s", result.Error)
	}
	if len(api.navigated) != 1 || api.navigated[0] != "https://go.dev" {
		t.Errorf("unexpected navigation: %v", api.navigated)
	}
	if result.Output == "" {
		t.Error("expected screenshot output")
	}
	if len(result.Steps) != 2 {
		t.Errorf("expected navigate+screenshot steps, got %d", len(result.Steps))
	}
}

func TestExecuteTask_ScreenshotOnlyWithoutURL(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.ExecuteTask(context.Background(), id, "capture the current screen")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("task failed: %s", result.Error)
	}
	if len(api.navigated) != 0 {
		t.Errorf("unexpected navigation: %v", api.navigated)
	}
	if len(result.Steps) != 1 || result.Steps[0].Name != "screenshot" {
		t.Errorf("unexpected steps: %v", result.Steps)
	}
}

func TestExecuteTask_NavigateFailureReported(t *testing.T) {
	api := newFakeAPI()
	api.navigateErr = errors.New("browser crashed")
	m := NewManager(api, testConfig(), nil)
	id := newTestSession(t, m)

	result, err := m.ExecuteTask(context.Background(), id, "go to https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected task failure")
	}
	if !strings.Contains(result.Error, "browser crashed") {
		t.Errorf("unexpected error: %s", result.Error)
	}
}
