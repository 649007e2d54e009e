package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/ragchat/internal/health"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
)

type fakeSession struct {
	credential string
	role       types.Role
	id         types.ConversationID
}

func (f *fakeSession) Credential() string              { return f.credential }
func (f *fakeSession) Role() types.Role                { return f.role }
func (f *fakeSession) CurrentID() types.ConversationID { return f.id }

const answerBody = `{"answer":"Refunds are accepted within 30 days.","citations":[{"doc_id":"doc-7","source":"policy.pdf","loc":"p.3","quote":"Refunds within 30 days."}],"confidence":0.82,"notes":[],"metrics":{"latency_ms":120,"tokens_est":350,"cost_est":0.0004,"topk":5,"docs_used":1}}`

func TestAskScenario(t *testing.T) {
	sess := &fakeSession{credential: "sk-test", role: types.RoleInternal, id: types.NewConversationID()}

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "sk-test" {
			t.Errorf("expected credential header, got %q", r.Header.Get("X-API-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		io.WriteString(w, answerBody)
	}))
	defer server.Close()

	signal := health.NewSignal()
	gw := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), signal)

	resp, err := gw.Ask(context.Background(), "What is the refund policy?")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"question":        "What is the refund policy?",
		"user_role":       "internal",
		"conversation_id": string(sess.id),
	}
	if len(got) != len(want) {
		t.Errorf("unexpected payload fields: %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload %s = %v, want %v", k, got[k], v)
		}
	}
	if resp.Confidence != 0.82 || len(resp.Citations) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Citations[0].DocID != "doc-7" || resp.Citations[0].Loc != "p.3" {
		t.Errorf("unexpected citation %+v", resp.Citations[0])
	}
	if signal.Get() != types.ConnectivityConnected {
		t.Errorf("expected connected, got %s", signal.Get())
	}
}

func TestMissingCredentialMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	signal := health.NewSignal()
	gw := New(&fakeSession{role: types.RolePublic, id: types.NewConversationID()}, rag.New(&rag.Config{BaseURL: server.URL}), signal)

	if _, err := gw.Ask(context.Background(), "hello"); !errors.Is(err, rag.ErrMissingCredential) {
		t.Errorf("ask: expected MissingCredential, got %v", err)
	}
	if _, err := gw.Ingest(context.Background()); !errors.Is(err, rag.ErrMissingCredential) {
		t.Errorf("ingest: expected MissingCredential, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected 0 calls, got %d", calls.Load())
	}
	if signal.Get() != types.ConnectivityUnknown {
		t.Errorf("connectivity must not change, got %s", signal.Get())
	}
}

func TestInvalidRoleIsPayloadInvalid(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	sess := &fakeSession{credential: "sk", role: types.Role("admin"), id: types.NewConversationID()}
	gw := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), health.NewSignal())

	if _, err := gw.Ask(context.Background(), "q"); !errors.Is(err, rag.ErrPayloadInvalid) {
		t.Errorf("expected PayloadInvalid, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid payload must not be sent")
	}
}

func TestConnectivityByOutcome(t *testing.T) {
	cases := []struct {
		name   string
		status int
		prior  types.ConnectivityState
		want   types.ConnectivityState
		kind   rag.Kind
	}{
		{"unauthorized keeps prior connected", http.StatusUnauthorized, types.ConnectivityConnected, types.ConnectivityConnected, rag.KindUnauthorized},
		{"unauthorized keeps prior disconnected", http.StatusUnauthorized, types.ConnectivityDisconnected, types.ConnectivityDisconnected, rag.KindUnauthorized},
		{"unavailable disconnects", http.StatusServiceUnavailable, types.ConnectivityConnected, types.ConnectivityDisconnected, rag.KindServiceUnavailable},
		{"server error still reachable", http.StatusInternalServerError, types.ConnectivityDisconnected, types.ConnectivityConnected, rag.KindRequestFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, `{"detail":"nope"}`)
			}))
			defer server.Close()

			signal := health.NewSignal()
			signal.Set(tc.prior)
			sess := &fakeSession{credential: "sk", role: types.RolePublic, id: types.NewConversationID()}
			gw := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), signal)

			_, err := gw.Ask(context.Background(), "q")
			if rag.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if signal.Get() != tc.want {
				t.Errorf("connectivity = %s, want %s", signal.Get(), tc.want)
			}
		})
	}
}

func TestUnauthorizedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sess := &fakeSession{credential: "bad", role: types.RolePublic, id: types.NewConversationID()}
	_, err := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), health.NewSignal()).Ask(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected Unauthorized message, got %v", err)
	}
}

func TestNetworkErrorDisconnects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	signal := health.NewSignal()
	signal.Set(types.ConnectivityConnected)
	sess := &fakeSession{credential: "sk", role: types.RolePublic, id: types.NewConversationID()}
	gw := New(sess, rag.New(&rag.Config{BaseURL: url}), signal)

	if _, err := gw.Ask(context.Background(), "q"); !errors.Is(err, rag.ErrNetwork) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if signal.Get() != types.ConnectivityDisconnected {
		t.Errorf("expected disconnected, got %s", signal.Get())
	}
}

func TestCallerDeadlineKeepsConnectivity(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(answerBody))
	}))
	defer server.Close()
	defer close(release)

	signal := health.NewSignal()
	signal.Set(types.ConnectivityConnected)
	sess := &fakeSession{credential: "sk", role: types.RolePublic, id: types.NewConversationID()}
	gw := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), signal)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := gw.Ask(ctx, "q"); err == nil {
		t.Fatal("expected the ask to fail once the caller gave up")
	}
	if signal.Get() != types.ConnectivityConnected {
		t.Errorf("connectivity must not change, got %s", signal.Get())
	}
}

func TestIngest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ingest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	signal := health.NewSignal()
	sess := &fakeSession{credential: "sk", role: types.RolePublic, id: types.NewConversationID()}
	resp, err := New(sess, rag.New(&rag.Config{BaseURL: server.URL}), signal).Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if signal.Get() != types.ConnectivityConnected {
		t.Errorf("expected connected, got %s", signal.Get())
	}
}
