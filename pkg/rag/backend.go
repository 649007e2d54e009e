package rag

import (
	"context"
	"time"
)

// Backend defines the calls a RAG service exposes to this client.
// Implementations handle transport, authentication and status mapping.
type Backend interface {
	// Ask posts a question and returns the validated structured answer.
	Ask(ctx context.Context, apiKey string, payload *AskPayload) (*AskResponse, error)

	// Ingest asks the backend to re-index its document store.
	Ingest(ctx context.Context, apiKey string) (*IngestResponse, error)

	// Health issues an unauthenticated GET and returns the HTTP status code.
	Health(ctx context.Context) (int, error)
}

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	AskPath        = "/ask"
	IngestPath     = "/ingest"
	HealthPath     = "/health"
	APIKeyHeader   = "X-API-Key"
)

// Config holds connection settings for a Backend.
type Config struct {
	BaseURL string
	// Timeout bounds ask and ingest requests. Zero means 60s.
	Timeout time.Duration
}
