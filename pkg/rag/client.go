package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client implements Backend over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a new HTTP client for the given configuration.
func New(config *Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Ask sends the question and validates the answer against the response contract.
func (c *Client) Ask(ctx context.Context, apiKey string, payload *AskPayload) (*AskResponse, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	body, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+AskPath, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindNetworkError, 0, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, apiKey)

	status, statusText, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		resp, err := DecodeResponse(respBody)
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				e.Status = status
			}
			return nil, err
		}
		return resp, nil
	case status == http.StatusUnauthorized:
		return nil, newError(KindUnauthorized, status, MessageUnauthorized, nil)
	case status == http.StatusServiceUnavailable:
		return nil, newError(KindServiceUnavailable, status, MessageServiceUnavailable, nil)
	default:
		return nil, newError(KindRequestFailed, status, failureMessage(status, statusText, respBody), nil)
	}
}

// Ingest triggers a backend re-index. The request carries no body.
func (c *Client) Ingest(ctx context.Context, apiKey string) (*IngestResponse, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+IngestPath, nil)
	if err != nil {
		return nil, newError(KindNetworkError, 0, "creating request", err)
	}
	req.Header.Set(APIKeyHeader, apiKey)

	status, _, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		resp, err := decodeIngest(respBody)
		if err != nil {
			return nil, newError(KindIngestFailed, status, MessageIngestFailed, err)
		}
		return resp, nil
	case status == http.StatusUnauthorized:
		return nil, newError(KindUnauthorized, status, "Unauthorized", nil)
	default:
		return nil, newError(KindIngestFailed, status, MessageIngestFailed, nil)
	}
}

// Health returns the status code of GET /health. The caller bounds it with ctx.
func (c *Client) Health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+HealthPath, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, newError(KindNetworkError, 0, "health probe failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) do(req *http.Request) (int, string, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, newError(KindNetworkError, 0, "sending request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, newError(KindNetworkError, resp.StatusCode, "reading response", err)
	}
	return resp.StatusCode, http.StatusText(resp.StatusCode), body, nil
}

// failureMessage prefers the server's detail and falls back to the status line.
func failureMessage(status int, statusText string, body []byte) string {
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Detail != "" {
		return eb.Detail
	}
	return fmt.Sprintf("Error %d: %s", status, statusText)
}
