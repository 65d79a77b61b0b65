package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// Persona is a named prompt template bound to an agent variant. It carries no
// behavior of its own beyond prompt selection.
type Persona struct {
	Variant      models.VariantID `yaml:"variant" json:"variant"`
	DisplayName  string           `yaml:"display_name" json:"display_name"`
	SystemPrompt string           `yaml:"system_prompt" json:"system_prompt"`
	Temperature  float64          `yaml:"temperature" json:"temperature"`
}

// defaultPersonas returns the built-in Mama Bear variants. A persona file can
// override prompts per variant but cannot add or remove variants.
func defaultPersonas() map[models.VariantID]*Persona {
	return map[models.VariantID]*Persona{
		models.VariantScoutCommander: {
			Variant:     models.VariantScoutCommander,
			DisplayName: "Scout Commander",
			SystemPrompt: "You are Scout Commander, the lead Mama Bear agent. " +
				"You plan, organize, and break work into actionable steps. " +
				"Be decisive and concrete; prefer numbered plans over prose.",
			Temperature: 0.4,
		},
		models.VariantResearchSpecialist: {
			Variant:     models.VariantResearchSpecialist,
			DisplayName: "Research Specialist",
			SystemPrompt: "You are the Research Specialist Mama Bear agent. " +
				"You analyze questions in depth, compare alternatives, and cite " +
				"the reasoning behind every conclusion.",
			Temperature: 0.3,
		},
		models.VariantCodeReviewBear: {
			Variant:     models.VariantCodeReviewBear,
			DisplayName: "Code Review Bear",
			SystemPrompt: "You are Code Review Bear. You review code for " +
				"correctness, clarity, and safety. Point at specific lines and " +
				"suggest minimal fixes.",
			Temperature: 0.2,
		},
		models.VariantDevOpsSpecialist: {
			Variant:     models.VariantDevOpsSpecialist,
			DisplayName: "DevOps Specialist",
			SystemPrompt: "You are the DevOps Specialist Mama Bear agent. You " +
				"handle deployment, infrastructure, and operational questions " +
				"with exact commands and configuration.",
			Temperature: 0.2,
		},
		models.VariantModelCoordinator: {
			Variant:     models.VariantModelCoordinator,
			DisplayName: "Model Coordinator",
			SystemPrompt: "You are the Model Coordinator. You advise on model " +
				"selection, quotas, and capability trade-offs across providers.",
			Temperature: 0.3,
		},
		models.VariantToolCurator: {
			Variant:     models.VariantToolCurator,
			DisplayName: "Tool Curator",
			SystemPrompt: "You are the Tool Curator Mama Bear agent. You " +
				"recommend, install, and configure tools and integrations.",
			Temperature: 0.3,
		},
		models.VariantIntegrationArchitect: {
			Variant:     models.VariantIntegrationArchitect,
			DisplayName: "Integration Architect",
			SystemPrompt: "You are the Integration Architect. You design API " +
				"integrations, webhooks, and data flows between services.",
			Temperature: 0.3,
		},
	}
}

// personaFile is the on-disk override format: a list of persona entries.
type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// loadPersonaOverrides reads a persona YAML file and applies overrides on top
// of the built-in set. Unknown variants are rejected.
func loadPersonaOverrides(path string, base map[models.VariantID]*Persona) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var pf personaFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse persona file %s: %w", path, err)
	}

	for i := range pf.Personas {
		override := &pf.Personas[i]
		existing, ok := base[override.Variant]
		if !ok {
			return fmt.Errorf("persona file references unknown variant %q", override.Variant)
		}
		if override.DisplayName != "" {
			existing.DisplayName = override.DisplayName
		}
		if override.SystemPrompt != "" {
			existing.SystemPrompt = override.SystemPrompt
		}
		if override.Temperature > 0 {
			existing.Temperature = override.Temperature
		}
	}

	return nil
}
