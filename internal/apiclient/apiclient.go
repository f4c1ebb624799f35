// Package apiclient reports processing progress and failures back to
// the application server that enqueued the work.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client calls back into the application API. Requests authenticate
// with the shared processing token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client for the given callback base URL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UpdateDocument PATCHes fields onto the document record. Used for
// page counts, extracted metadata, and the final processing status.
func (c *Client) UpdateDocument(ctx context.Context, docID int64, fields map[string]any) error {
	url := fmt.Sprintf("%s/documents/%d/", c.baseURL, docID)
	return c.send(ctx, http.MethodPatch, url, fields)
}

// ReportError POSTs a processing failure for the document.
func (c *Client) ReportError(ctx context.Context, docID int64, message string, fatal bool) error {
	url := fmt.Sprintf("%s/documents/%d/errors/", c.baseURL, docID)
	return c.send(ctx, http.MethodPost, url, map[string]any{
		"message": message,
		"fatal":   fatal,
	})
}

func (c *Client) send(ctx context.Context, method, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := c.attempt(ctx, method, url, payload)
		if err == nil {
			return nil
		}
		lastErr = err

		slog.Warn("API callback failed, will retry.",
			"url", url,
			"attempt", attempt+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "url", url, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("API callback failed after all retries.", "url", url, "error", lastErr)
	return fmt.Errorf("callback to %s failed after all retries: %w", url, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "processing-token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
