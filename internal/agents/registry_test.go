package agents

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

func TestNewRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}

	variants := r.Variants()
	if len(variants) != 7 {
		t.Fatalf("expected 7 built-in variants, got %d", len(variants))
	}

	p, err := r.Get(models.VariantScoutCommander)
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Scout Commander" {
		t.Errorf("unexpected display name: %s", p.DisplayName)
	}
	if p.SystemPrompt == "" {
		t.Error("expected non-empty system prompt")
	}
}

func TestNewRegistry_MissingPersonaFileTolerated(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing persona file should not fail: %v", err)
	}
	if !r.Has(models.VariantCodeReviewBear) {
		t.Error("expected built-in variants")
	}
}

func TestNewRegistry_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := `personas:
  - variant: research-specialist
    display_name: Deep Research Bear
    system_prompt: You dig deep.
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistry(path)
	if err != nil {
		t.Fatal(err)
	}

	p, err := r.Get(models.VariantResearchSpecialist)
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Deep Research Bear" {
		t.Errorf("override not applied: %s", p.DisplayName)
	}
	if p.SystemPrompt != "You dig deep." {
		t.Errorf("prompt override not applied: %s", p.SystemPrompt)
	}

	// Untouched variants keep their defaults.
	other, err := r.Get(models.VariantToolCurator)
	if err != nil {
		t.Fatal(err)
	}
	if other.DisplayName != "Tool Curator" {
		t.Errorf("unrelated variant changed: %s", other.DisplayName)
	}
}

func TestNewRegistry_UnknownVariantRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := `personas:
  - variant: papa-bear
    display_name: Papa Bear
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewRegistry(path); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestRegistry_StatusTransitions(t *testing.T) {
	r, err := NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}

	r.MarkBusy(models.VariantDevOpsSpecialist)
	st := findStatus(t, r, models.VariantDevOpsSpecialist)
	if st.State != models.AgentStateBusy {
		t.Errorf("expected busy, got %s", st.State)
	}
	if st.RequestCount != 1 {
		t.Errorf("expected request count 1, got %d", st.RequestCount)
	}

	r.MarkError(models.VariantDevOpsSpecialist, errors.New("upstream timeout"))
	st = findStatus(t, r, models.VariantDevOpsSpecialist)
	if st.State != models.AgentStateError {
		t.Errorf("expected error state, got %s", st.State)
	}
	if st.ErrorCount != 1 || st.LastError == "" {
		t.Errorf("error not recorded: count=%d last=%q", st.ErrorCount, st.LastError)
	}

	r.MarkIdle(models.VariantDevOpsSpecialist)
	st = findStatus(t, r, models.VariantDevOpsSpecialist)
	if st.State != models.AgentStateIdle {
		t.Errorf("expected idle, got %s", st.State)
	}
	if st.LastError != "" {
		t.Errorf("expected last error cleared, got %q", st.LastError)
	}
}

func TestRegistry_ReloadPreservesCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte("personas: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistry(path)
	if err != nil {
		t.Fatal(err)
	}

	r.MarkBusy(models.VariantScoutCommander)
	r.MarkBusy(models.VariantScoutCommander)

	content := `personas:
  - variant: scout-commander
    display_name: Commander Prime
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}

	st := findStatus(t, r, models.VariantScoutCommander)
	if st.RequestCount != 2 {
		t.Errorf("reload lost counters: got %d", st.RequestCount)
	}
	if st.DisplayName != "Commander Prime" {
		t.Errorf("reload did not apply override: %s", st.DisplayName)
	}
}

func findStatus(t *testing.T, r *Registry, variant models.VariantID) models.AgentStatus {
	t.Helper()
	for _, st := range r.Statuses() {
		if st.Variant == variant {
			return st
		}
	}
	t.Fatalf("variant %s not in statuses", variant)
	return models.AgentStatus{}
}
