package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

func TestClientStart(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Instance{
			ID:        "inst-1",
			Kind:      "browser",
			Status:    "deploying",
			StreamURL: "https://stream.example/1",
		})
	}))
	defer srv.Close()

	c := NewClient(config.SandboxConfig{Endpoint: srv.URL, APIKey: "scrapy-key"})
	inst, err := c.Start(context.Background(), "browser")
	require.NoError(t, err)

	assert.Equal(t, "/start", gotPath)
	assert.Equal(t, "scrapy-key", gotKey)
	assert.Equal(t, "browser", gotBody["instance_type"])
	assert.Equal(t, "inst-1", inst.ID)
	assert.Equal(t, "deploying", inst.Status)
}

func TestClientInstanceRoutes(t *testing.T) {
	var paths []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch {
		case r.URL.Path == "/instance/inst-1" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(Instance{ID: "inst-1", Status: "running"})
		case r.URL.Path == "/instance/inst-1/screenshot":
			json.NewEncoder(w).Encode(Screenshot{Base64Image: "aW1n"})
		case r.URL.Path == "/instance/inst-1/file/read":
			json.NewEncoder(w).Encode(map[string]string{"content": "hello\n"})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := NewClient(config.SandboxConfig{Endpoint: srv.URL})
	ctx := context.Background()

	inst, err := c.Status(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "running", inst.Status)

	require.NoError(t, c.Stop(ctx, "inst-1"))
	require.NoError(t, c.Pause(ctx, "inst-1"))
	require.NoError(t, c.Resume(ctx, "inst-1"))

	shot, err := c.TakeScreenshot(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "aW1n", shot.Base64Image)

	require.NoError(t, c.BrowserNavigate(ctx, "inst-1", "https://example.com"))
	require.NoError(t, c.Computer(ctx, "inst-1", ComputerAction{Action: "click", Coordinate: []int{10, 20}}))

	content, err := c.ReadFile(ctx, "inst-1", "/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", content)

	require.NoError(t, c.WriteFile(ctx, "inst-1", "/tmp/x", "hello\n"))

	assert.Equal(t, []string{
		"GET /instance/inst-1",
		"POST /instance/inst-1/stop",
		"POST /instance/inst-1/pause",
		"POST /instance/inst-1/resume",
		"POST /instance/inst-1/screenshot",
		"POST /instance/inst-1/browser/navigate",
		"POST /instance/inst-1/computer",
		"POST /instance/inst-1/file/read",
		"POST /instance/inst-1/file/write",
	}, paths)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "no capacity"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.SandboxConfig{Endpoint: srv.URL})
	_, err := c.Start(context.Background(), "ubuntu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
