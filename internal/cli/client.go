package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/server"
)

// Client talks to a running ragbase server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Ask sends a question.
func (c *Client) Ask(ctx context.Context, req *models.AskRequest) (*models.Answer, error) {
	var answer models.Answer
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ask", req, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// AddText submits raw text for ingestion.
func (c *Client) AddText(ctx context.Context, text, sourceFile string) (*models.IngestResult, error) {
	body := map[string]string{"text": text}
	if sourceFile != "" {
		body["source_file"] = sourceFile
	}
	var result models.IngestResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/documents", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadPDF uploads the PDF at path.
func (c *Client) UploadPDF(ctx context.Context, path string) (*models.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents/pdf", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var result models.IngestResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Chunks lists every stored chunk.
func (c *Client) Chunks(ctx context.Context) (*server.ChunkList, error) {
	var list server.ChunkList
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/chunks", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Clear deletes every stored chunk.
func (c *Client) Clear(ctx context.Context) (*server.ClearResponse, error) {
	var out server.ClearResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/v1/chunks", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server status.
func (c *Client) Status(ctx context.Context) (*server.StatusResponse, error) {
	var out server.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
