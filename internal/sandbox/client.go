// Package sandbox wraps the remote desktop automation API (Scrapybara-style).
// Instance lifecycle is owned entirely by the remote service; this package
// forwards identifiers and keeps only local session bookkeeping.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

// Instance is the remote service's view of a running VM.
type Instance struct {
	ID        string `json:"instance_id"`
	Kind      string `json:"instance_type"`
	Status    string `json:"status"` // "deploying", "running", "paused", "terminated"
	StreamURL string `json:"stream_url,omitempty"`
}

// Screenshot is a captured frame from the remote instance.
type Screenshot struct {
	Base64Image string `json:"base_64_image"`
}

// ComputerAction is a low-level desktop action forwarded to the instance.
type ComputerAction struct {
	Action     string `json:"action"` // "click", "type", "key", "scroll", "move"
	Coordinate []int  `json:"coordinate,omitempty"`
	Text       string `json:"text,omitempty"`
	Button     string `json:"button,omitempty"`
}

// API is the remote sandbox surface the session manager depends on.
type API interface {
	Start(ctx context.Context, kind string) (*Instance, error)
	Status(ctx context.Context, instanceID string) (*Instance, error)
	Stop(ctx context.Context, instanceID string) error
	Pause(ctx context.Context, instanceID string) error
	Resume(ctx context.Context, instanceID string) error
	TakeScreenshot(ctx context.Context, instanceID string) (*Screenshot, error)
	Computer(ctx context.Context, instanceID string, action ComputerAction) error
	BrowserNavigate(ctx context.Context, instanceID, url string) error
	ReadFile(ctx context.Context, instanceID, path string) (string, error)
	WriteFile(ctx context.Context, instanceID, path, content string) error
}

// Client implements API over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a sandbox API client from configuration.
func NewClient(cfg config.SandboxConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Start deploys a new remote instance of the given kind.
func (c *Client) Start(ctx context.Context, kind string) (*Instance, error) {
	var inst Instance
	err := c.do(ctx, http.MethodPost, "/start", map[string]string{"instance_type": kind}, &inst)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s instance: %w", kind, err)
	}
	return &inst, nil
}

// Status fetches the current remote state of an instance.
func (c *Client) Status(ctx context.Context, instanceID string) (*Instance, error) {
	var inst Instance
	err := c.do(ctx, http.MethodGet, "/instance/"+instanceID, nil, &inst)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance %s: %w", instanceID, err)
	}
	return &inst, nil
}

// Stop terminates a remote instance.
func (c *Client) Stop(ctx context.Context, instanceID string) error {
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/stop", nil, nil); err != nil {
		return fmt.Errorf("failed to stop instance %s: %w", instanceID, err)
	}
	return nil
}

// Pause suspends a remote instance without destroying it.
func (c *Client) Pause(ctx context.Context, instanceID string) error {
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/pause", nil, nil); err != nil {
		return fmt.Errorf("failed to pause instance %s: %w", instanceID, err)
	}
	return nil
}

// Resume wakes a paused instance.
func (c *Client) Resume(ctx context.Context, instanceID string) error {
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/resume", nil, nil); err != nil {
		return fmt.Errorf("failed to resume instance %s: %w", instanceID, err)
	}
	return nil
}

// TakeScreenshot captures the instance's current display.
func (c *Client) TakeScreenshot(ctx context.Context, instanceID string) (*Screenshot, error) {
	var shot Screenshot
	err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/screenshot", nil, &shot)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed on instance %s: %w", instanceID, err)
	}
	return &shot, nil
}

// Computer forwards a desktop action (click, type, key, scroll) to the instance.
func (c *Client) Computer(ctx context.Context, instanceID string, action ComputerAction) error {
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/computer", action, nil); err != nil {
		return fmt.Errorf("computer action %q failed on instance %s: %w", action.Action, instanceID, err)
	}
	return nil
}

// BrowserNavigate points the instance's browser at a URL.
func (c *Client) BrowserNavigate(ctx context.Context, instanceID, url string) error {
	body := map[string]string{"url": url}
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/browser/navigate", body, nil); err != nil {
		return fmt.Errorf("browser navigate failed on instance %s: %w", instanceID, err)
	}
	return nil
}

// ReadFile reads a file from the instance's filesystem.
func (c *Client) ReadFile(ctx context.Context, instanceID, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	body := map[string]string{"path": path}
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/file/read", body, &out); err != nil {
		return "", fmt.Errorf("file read failed on instance %s: %w", instanceID, err)
	}
	return out.Content, nil
}

// WriteFile writes a file on the instance's filesystem.
func (c *Client) WriteFile(ctx context.Context, instanceID, path, content string) error {
	body := map[string]string{"path": path, "content": content}
	if err := c.do(ctx, http.MethodPost, "/instance/"+instanceID+"/file/write", body, nil); err != nil {
		return fmt.Errorf("file write failed on instance %s: %w", instanceID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sandbox API returned %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode sandbox API response: %w", err)
		}
	}

	return nil
}
