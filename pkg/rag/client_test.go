package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const refundAnswer = `{
  "answer": "Refunds are accepted within 30 days.",
  "citations": [{"doc_id": "doc-7", "source": "policy.pdf", "loc": "p.3", "quote": "Refunds within 30 days."}],
  "confidence": 0.82,
  "notes": [],
  "metrics": {"latency_ms": 120, "tokens_est": 350, "cost_est": 0.0004, "topk": 5, "docs_used": 1}
}`

func TestClientAsk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != AskPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(APIKeyHeader) != "sk-test" {
			t.Error("missing or invalid api key header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing content type")
		}

		var got AskPayload
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
			return
		}
		want := AskPayload{Question: "What is the refund policy?", UserRole: "internal", ConversationID: "conv-1"}
		if got != want {
			t.Errorf("payload mismatch: %+v", got)
		}
		io.WriteString(w, refundAnswer)
	}))
	defer server.Close()

	client := New(&Config{BaseURL: server.URL})
	resp, err := client.Ask(context.Background(), "sk-test", &AskPayload{
		Question:       "What is the refund policy?",
		UserRole:       "internal",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	var want AskResponse
	if err := json.Unmarshal([]byte(refundAnswer), &want); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*resp, want) {
		t.Errorf("response mismatch:\n got %+v\nwant %+v", *resp, want)
	}
	if resp.Confidence != 0.82 || len(resp.Citations) != 1 {
		t.Errorf("unexpected answer %+v", resp)
	}
}

func TestClientAskDefaultsNotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"answer":"a","citations":[],"confidence":0.1,"metrics":{"latency_ms":1,"tokens_est":1,"cost_est":0,"topk":1,"docs_used":0}}`)
	}))
	defer server.Close()

	resp, err := New(&Config{BaseURL: server.URL}).Ask(context.Background(), "k", &AskPayload{Question: "q", UserRole: "public"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Notes == nil || len(resp.Notes) != 0 {
		t.Errorf("expected empty notes, got %#v", resp.Notes)
	}
}

func TestClientAskResponseInvalid(t *testing.T) {
	bodies := map[string]string{
		"missing answer":     `{"citations":[],"confidence":0.5,"metrics":{"latency_ms":1,"tokens_est":1,"cost_est":0,"topk":1,"docs_used":0}}`,
		"missing metrics":    `{"answer":"a","citations":[],"confidence":0.5}`,
		"confidence too big": `{"answer":"a","citations":[],"confidence":1.5,"metrics":{"latency_ms":1,"tokens_est":1,"cost_est":0,"topk":1,"docs_used":0}}`,
		"citation no quote":  `{"answer":"a","citations":[{"doc_id":"d","source":"s"}],"confidence":0.5,"metrics":{"latency_ms":1,"tokens_est":1,"cost_est":0,"topk":1,"docs_used":0}}`,
		"not json":           `<html>oops</html>`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer server.Close()

			_, err := New(&Config{BaseURL: server.URL}).Ask(context.Background(), "k", &AskPayload{Question: "q", UserRole: "public"})
			if !errors.Is(err, ErrResponseInvalid) {
				t.Fatalf("expected ResponseInvalid, got %v", err)
			}
		})
	}
}

func TestClientAskStatusMapping(t *testing.T) {
	cases := []struct {
		status  int
		body    string
		want    *Error
		message string
	}{
		{http.StatusUnauthorized, `{"detail":"bad key"}`, ErrUnauthorized, "Unauthorized: Invalid API Key"},
		{http.StatusServiceUnavailable, `{"detail":"busy"}`, ErrServiceUnavailable, "Service Unavailable: The RAG system is busy or down."},
		{http.StatusInternalServerError, `{"detail":"index missing"}`, ErrRequestFailed, "index missing"},
		{http.StatusBadGateway, `nope`, ErrRequestFailed, "Error 502: Bad Gateway"},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		}))

		_, err := New(&Config{BaseURL: server.URL}).Ask(context.Background(), "k", &AskPayload{Question: "q", UserRole: "public"})
		server.Close()

		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected kind %s, got %v", tc.status, tc.want.Kind, err)
			continue
		}
		if err.Error() != tc.message {
			t.Errorf("status %d: expected message %q, got %q", tc.status, tc.message, err.Error())
		}
		if StatusOf(err) != tc.status {
			t.Errorf("status %d: StatusOf = %d", tc.status, StatusOf(err))
		}
	}
}

func TestClientMissingCredentialNoRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := New(&Config{BaseURL: server.URL})
	if _, err := client.Ask(context.Background(), "", &AskPayload{Question: "q", UserRole: "public"}); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("ask: expected MissingCredential, got %v", err)
	}
	if _, err := client.Ingest(context.Background(), ""); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("ingest: expected MissingCredential, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(&Config{BaseURL: url}).Ask(context.Background(), "k", &AskPayload{Question: "q", UserRole: "public"})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestClientIngest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != IngestPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.ContentLength > 0 {
			t.Error("expected empty body")
		}
		switch r.Header.Get(APIKeyHeader) {
		case "good":
			io.WriteString(w, `{"status":"ok","message":"ingest complete"}`)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := New(&Config{BaseURL: server.URL + "/"})
	resp, err := client.Ingest(context.Background(), "good")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Message != "ingest complete" {
		t.Errorf("unexpected ingest response %+v", resp)
	}

	if _, err := client.Ingest(context.Background(), "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	} else if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if _, err := client.Ingest(context.Background(), "broken"); !errors.Is(err, ErrIngestFailed) {
		t.Errorf("expected IngestFailed, got %v", err)
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(APIKeyHeader) != "" {
			t.Error("health probe should not send credentials")
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := New(&Config{BaseURL: server.URL}).Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}
