package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	serverURL string
	apiKey    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "podplayctl",
		Short: "Podplay CLI - interact with your Podplay server",
		Long: `podplayctl is a command-line interface for the Podplay orchestration server.
All output is structured JSON (pipe through jq for human-readable formatting).`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", getDefaultServer(), "Podplay server URL")
	rootCmd.PersistentFlags().StringVarP(&apiKey, "api-key", "k", os.Getenv("PODPLAY_API_KEY"), "API key for authenticated servers")

	// Add subcommands
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newAgentsCommand())
	rootCmd.AddCommand(newSessionCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newWorkflowCommand())
	rootCmd.AddCommand(newHealthCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getDefaultServer() string {
	if server := os.Getenv("PODPLAY_SERVER"); server != "" {
		return server
	}
	return "http://localhost:5001"
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL: serverURL,
		HTTP:    &http.Client{Timeout: 180 * time.Second},
	}
}

func (c *Client) do(method, path string, data interface{}) ([]byte, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *Client) get(path string) ([]byte, error) {
	return c.do("GET", path, nil)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	return c.do("POST", path, data)
}

func printJSON(data []byte) {
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		fmt.Println(string(data))
		return
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(string(pretty))
}
