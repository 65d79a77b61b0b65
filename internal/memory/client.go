// Package memory talks to the external conversation-memory API. All durable
// memory state lives in the remote service; this package only forwards
// messages and search queries, with an optional Redis cache for the most
// recent turns per user.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

// Memory is a single remembered fact returned by search. The id is opaque;
// only the remote service can interpret it.
type Memory struct {
	ID        string    `json:"id"`
	Text      string    `json:"memory"`
	Score     float64   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// message mirrors the remote API's chat message shape.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the interface the orchestrator depends on for memory.
type Store interface {
	AddExchange(ctx context.Context, userID, userMsg, assistantMsg string) error
	Search(ctx context.Context, userID, query string) ([]Memory, error)
	RecentContext(ctx context.Context, userID string) []Exchange
}

// contextCache is the recent-context store in front of the remote API.
// *Cache is the Redis implementation.
type contextCache interface {
	Append(ctx context.Context, userID string, ex Exchange) error
	Recent(ctx context.Context, userID string) ([]Exchange, error)
}

// Client implements Store against the remote memory API.
type Client struct {
	endpoint    string
	apiKey      string
	searchLimit int
	httpClient  *http.Client
	cache       contextCache     // nil when Redis is not configured
	metrics     *metrics.Metrics // nil in tests
}

// NewClient creates a memory client. cache may be nil.
func NewClient(cfg config.MemoryConfig, cache *Cache) *Client {
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = 5
	}
	c := &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		searchLimit: limit,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	if cache != nil {
		c.cache = cache
	}
	return c
}

// SetMetrics wires the cache-hit counter.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// AddExchange persists a user/assistant exchange to the remote memory API and
// appends it to the Redis recent-context cache. A remote failure is returned;
// a cache failure is only logged.
func (c *Client) AddExchange(ctx context.Context, userID, userMsg, assistantMsg string) error {
	body := map[string]interface{}{
		"messages": []message{
			{Role: "user", Content: userMsg},
			{Role: "assistant", Content: assistantMsg},
		},
		"user_id": userID,
	}

	if err := c.post(ctx, "/memories", body, nil); err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Append(ctx, userID, Exchange{User: userMsg, Assistant: assistantMsg}); err != nil {
			log.Printf("[Memory] Cache append failed for user %s: %v", userID, err)
		}
	}

	return nil
}

// Search queries the remote memory API for facts relevant to the query.
func (c *Client) Search(ctx context.Context, userID, query string) ([]Memory, error) {
	body := map[string]interface{}{
		"query":   query,
		"user_id": userID,
		"limit":   c.searchLimit,
	}

	var result struct {
		Results []Memory `json:"results"`
	}
	if err := c.post(ctx, "/memories/search", body, &result); err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	return result.Results, nil
}

// RecentContext returns the cached recent exchanges for a user. Returns nil
// when no cache is configured or the cache is unreachable.
func (c *Client) RecentContext(ctx context.Context, userID string) []Exchange {
	if c.cache == nil {
		return nil
	}
	exchanges, err := c.cache.Recent(ctx, userID)
	if err != nil {
		log.Printf("[Memory] Cache read failed for user %s: %v", userID, err)
		return nil
	}
	if len(exchanges) > 0 && c.metrics != nil {
		c.metrics.MemoryCacheHits.Inc()
	}
	return exchanges
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("memory API returned %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode memory API response: %w", err)
		}
	}

	return nil
}
