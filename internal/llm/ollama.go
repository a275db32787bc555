package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/ragbase/internal/models"
)

// Default Ollama settings.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3"
	DefaultOllamaTimeout = 120 * time.Second
)

// OllamaConfig configures OllamaClient.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaClient completes prompts with a local Ollama server's /api/generate endpoint.
type OllamaClient struct {
	client  *http.Client
	baseURL string
	model   string
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response format.
// Response is a pointer so a reply without the field can be told apart from an
// empty answer.
type generateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error,omitempty"`
}

// NewOllamaClient creates an Ollama completion client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}
	return &OllamaClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
}

// Complete posts a non-streaming generate request and returns the "response" field.
// Any non-200 status is an error carrying the response body.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama generate: %w", models.ErrRemoteCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("%w: ollama error (status %d): failed to read response", models.ErrRemoteCall, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: ollama error (status %d): %s", models.ErrRemoteCall, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: ollama generate: decode response: %w", models.ErrRemoteCall, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: ollama generate: %s", models.ErrRemoteCall, out.Error)
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: ollama generate: response field missing", models.ErrRemoteCall)
	}
	return *out.Response, nil
}

// ModelName returns the Ollama model identifier.
func (c *OllamaClient) ModelName() string {
	return c.model
}

// Ping checks that the Ollama server is reachable via /api/tags.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama ping: %w", models.ErrRemoteCall, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama ping: status %d", models.ErrRemoteCall, resp.StatusCode)
	}
	return nil
}

var _ Completer = (*OllamaClient)(nil)
