package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ragchat/internal/config"
	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
)

const replAnswer = `{
	"answer": "Refunds are accepted within 30 days.",
	"citations": [{"doc_id": "doc-7", "source": "policy.pdf", "loc": "p.3", "quote": "Refunds within 30 days."}],
	"confidence": 0.82,
	"notes": [],
	"metrics": {"latency_ms": 120, "tokens_est": 1350, "cost_est": 0.0004, "topk": 5, "docs_used": 1}
}`

func testApp(t *testing.T) *app {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case rag.AskPath:
			w.Write([]byte(replAnswer))
		case rag.IngestPath:
			w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(backend.Close)

	cfg := &config.Config{DataDir: t.TempDir()}
	cfg.API.BaseURL = backend.URL
	cfg.Store.Backend = state.BackendMemory

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.session.SetCredential(context.Background(), "sk-test"))
	return a
}

func TestREPL(t *testing.T) {
	a := testApp(t)
	in := strings.NewReader("What is the refund policy?\n/status\n/export text\n/clear\n/bogus\n/quit\n")
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), a, in, &out))

	got := out.String()
	assert.Contains(t, got, "Refunds are accepted within 30 days.")
	assert.Contains(t, got, "Confidence: 82% (high)")
	assert.Contains(t, got, `1. doc-7 (policy.pdf, p.3) - "Refunds within 30 days."`)
	assert.Contains(t, got, "[120ms | 1,350 tokens | $0.0004 | top-k 5 | 1 docs]")
	assert.Contains(t, got, "Connection:   Connected")
	assert.Contains(t, got, "API key:      ***\n")
	assert.Contains(t, got, "Started conversation")
	assert.Contains(t, got, "unknown command /bogus")
	assert.Zero(t, a.log().Len())

	matches, err := filepath.Glob(filepath.Join(a.cfg.ExportPath(), "chat-export-*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sources:\n  1. doc-7")
}

func TestPrintDetailsWarnings(t *testing.T) {
	var out bytes.Buffer
	printDetails(&out, &rag.AskResponse{
		Answer:     "I cannot help with that.",
		Citations:  []rag.Citation{},
		Confidence: 0.2,
		Notes:      []string{"Prompt injection attempt blocked"},
	})
	got := out.String()
	assert.Contains(t, got, "Confidence: 20% (low)")
	assert.Contains(t, got, "Low confidence")
	assert.Contains(t, got, "  - Prompt injection attempt blocked")
	assert.Contains(t, got, "Prompt injection attempt detected")
	assert.NotContains(t, got, "Sources:")
}

func TestPrintMessageUser(t *testing.T) {
	var out bytes.Buffer
	printMessage(&out, types.NewUserMessage("hello", time.Now()))
	assert.True(t, strings.HasPrefix(out.String(), "You ("))
	assert.Contains(t, out.String(), "\nhello\n")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "***", maskKey("ab"))
	assert.Equal(t, "***", maskKey("sk-1234"))
	assert.Equal(t, "***1234", maskKey("sk-live-1234"))
}

func TestLogConnectivityStopsWhenUnsubscribed(t *testing.T) {
	updates := make(chan types.ConnectivityState, 1)
	updates <- types.ConnectivityConnected
	close(updates)

	done := make(chan struct{})
	go func() {
		logConnectivity(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logger kept running after the channel closed")
	}
}

func TestAppReopenRestoresSession(t *testing.T) {
	first := testApp(t)
	cfg := *first.cfg
	cfg.Store.Backend = state.BackendBolt
	first.Close()

	ctx := context.Background()
	a, err := newApp(ctx, &cfg)
	require.NoError(t, err)
	require.NoError(t, a.session.SetCredential(ctx, "sk-test"))
	require.NoError(t, a.session.SetRole(ctx, types.RoleInternal))
	_, err = a.chat.Send(ctx, "What is the refund policy?")
	require.NoError(t, err)
	id := a.session.CurrentID()
	a.Close()

	b, err := newApp(ctx, &cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, id, b.session.CurrentID())
	assert.Equal(t, "sk-test", b.session.Credential())
	assert.Equal(t, types.RoleInternal, b.session.Role())
	msgs := b.log().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 0.82, msgs[1].Data.Confidence)
}
