package orchestrator

import (
	"strings"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/models"
)

// Route is the outcome of keyword routing: either a chat variant or a
// delegation to the computer-use path.
type Route struct {
	Variant     models.VariantID
	ComputerUse bool
	Matched     string // the keyword that decided the route, empty for default
}

// rule maps a keyword list to a routing target. Rules are evaluated in order;
// the first keyword found in the message wins.
type rule struct {
	keywords    []string
	variant     models.VariantID
	computerUse bool
}

// routingRules is the deterministic routing table. Computer-use delegation is
// checked first so "take a screenshot and analyze it" goes to the sandbox, not
// the research variant.
var routingRules = []rule{
	{
		keywords: []string{
			"screenshot", "browser", "computer use", "click on", "navigate to",
			"scrape", "fill form", "fill the form", "automate", "open website",
			"remote desktop", "on the vm",
		},
		computerUse: true,
	},
	{
		keywords: []string{"analyze", "research", "investigate", "compare", "summarize", "deep dive"},
		variant:  models.VariantResearchSpecialist,
	},
	{
		keywords: []string{"plan", "organize", "roadmap", "schedule", "break down", "prioritize"},
		variant:  models.VariantScoutCommander,
	},
	{
		keywords: []string{"review", "refactor", "bug", "lint", "pull request", "code smell"},
		variant:  models.VariantCodeReviewBear,
	},
	{
		keywords: []string{"deploy", "docker", "kubernetes", "terraform", "pipeline", "infrastructure", "ci/cd"},
		variant:  models.VariantDevOpsSpecialist,
	},
	{
		keywords: []string{"which model", "model selection", "token limit", "quota", "context window"},
		variant:  models.VariantModelCoordinator,
	},
	{
		keywords: []string{"install", "plugin", "extension", "which tool", "recommend a tool", "mcp"},
		variant:  models.VariantToolCurator,
	},
	{
		keywords: []string{"webhook", "api integration", "connect to", "oauth", "data flow", "sync between"},
		variant:  models.VariantIntegrationArchitect,
	},
}

// RouteMessage selects a target for a chat message by keyword scan.
// First match wins; messages matching nothing go to the default variant.
func RouteMessage(message string, defaultVariant models.VariantID) Route {
	lowered := strings.ToLower(message)

	for _, r := range routingRules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return Route{
					Variant:     r.variant,
					ComputerUse: r.computerUse,
					Matched:     kw,
				}
			}
		}
	}

	return Route{Variant: defaultVariant}
}
