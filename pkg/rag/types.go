package rag

import "strings"

// AskPayload is the request body for POST /ask.
type AskPayload struct {
	Question       string `json:"question"`
	UserRole       string `json:"user_role"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AskResponse is a validated answer from POST /ask.
type AskResponse struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Notes      []string   `json:"notes"`
	Metrics    Metrics    `json:"metrics"`
}

// Citation is a source excerpt the backend offers in support of an answer.
type Citation struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Loc    string `json:"loc,omitempty"`
	Quote  string `json:"quote"`
}

// Metrics carries the backend's cost and retrieval accounting.
type Metrics struct {
	LatencyMS float64 `json:"latency_ms"`
	TokensEst float64 `json:"tokens_est"`
	CostEst   float64 `json:"cost_est"`
	TopK      float64 `json:"topk"`
	DocsUsed  float64 `json:"docs_used"`
}

// IngestResponse is the body returned by POST /ingest.
type IngestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the {detail} body the backend sends on failures.
type ErrorBody struct {
	Detail string `json:"detail"`
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Level buckets the confidence score: >= 0.7 high, >= 0.4 medium, else low.
func (r *AskResponse) Level() ConfidenceLevel {
	switch {
	case r.Confidence >= 0.7:
		return ConfidenceHigh
	case r.Confidence >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// LowConfidence reports whether the answer should carry a reliability warning.
func (r *AskResponse) LowConfidence() bool {
	return r.Confidence < 0.4
}

// SecurityFlagged reports whether any note mentions a prompt injection attempt.
func (r *AskResponse) SecurityFlagged() bool {
	for _, n := range r.Notes {
		if strings.Contains(strings.ToLower(n), "prompt injection") {
			return true
		}
	}
	return false
}
