// Package model wraps the Anthropic SDK behind a small manager that tries an
// ordered list of models until one answers.
package model

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

// Completion is the result of a successful inference call.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Message is one turn of conversation context passed to inference.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Inferencer is the narrow interface the orchestrator depends on.
type Inferencer interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, prompt string) (*Completion, error)
}

// Manager calls the Anthropic API with provider fallback and token accounting.
type Manager struct {
	client    anthropic.Client
	models    []anthropic.Model
	maxTokens int64
	timeout   time.Duration

	mu           sync.Mutex
	inputTokens  int64
	outputTokens int64
}

// NewManager creates a model manager from configuration. The API key falls
// back to the ANTHROPIC_API_KEY environment variable.
func NewManager(cfg config.ModelsConfig) (*Manager, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Anthropic API key configured (models.api_key or ANTHROPIC_API_KEY)")
	}

	chain := make([]anthropic.Model, 0, 1+len(cfg.Fallbacks))
	primary := cfg.Primary
	if primary == "" {
		primary = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	chain = append(chain, anthropic.Model(primary))
	for _, m := range cfg.Fallbacks {
		chain = append(chain, anthropic.Model(m))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Manager{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		models:    chain,
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// Complete runs inference against the model chain. Each model is tried in
// order; the first success wins. All failures are joined into one error.
func (m *Manager) Complete(ctx context.Context, systemPrompt string, history []Message, prompt string) (*Completion, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, h := range history {
		switch h.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(h.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(h.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	var lastErr error
	for _, mdl := range m.models {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		resp, err := m.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     mdl,
			MaxTokens: m.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: messages,
		})
		cancel()
		if err != nil {
			log.Printf("[Model] %s failed: %v", mdl, err)
			lastErr = err
			// Do not fall through to another model if the caller is gone.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		var text string
		for _, block := range resp.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				text += variant.Text
			}
		}

		m.track(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		return &Completion{
			Text:         text,
			Model:        string(mdl),
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}, nil
	}

	return nil, fmt.Errorf("all %d models failed, last error: %w", len(m.models), lastErr)
}

func (m *Manager) track(in, out int64) {
	m.mu.Lock()
	m.inputTokens += in
	m.outputTokens += out
	m.mu.Unlock()
}

// Usage returns cumulative token counts since startup.
func (m *Manager) Usage() (input, output int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputTokens, m.outputTokens
}
