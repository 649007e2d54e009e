package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
	logx "github.com/user/ragchat/pkg/logger"
)

// Gateway sends ask and ingest requests on behalf of the active session and
// publishes connectivity after every completed attempt. It holds no request
// state of its own; concurrent calls are independent.
type Gateway struct {
	session types.SessionContext
	backend rag.Backend
	signal  types.ConnectivitySink
	log     zerolog.Logger
}

// New creates a Gateway bound to the given session context, backend and
// connectivity sink.
func New(session types.SessionContext, backend rag.Backend, signal types.ConnectivitySink) *Gateway {
	return &Gateway{
		session: session,
		backend: backend,
		signal:  signal,
		log:     logx.With("gateway"),
	}
}

// Ask posts question with the session's role and conversation id. A missing
// credential fails before any request is made.
func (g *Gateway) Ask(ctx context.Context, question string) (*rag.AskResponse, error) {
	apiKey := g.session.Credential()
	if apiKey == "" {
		return nil, rag.ErrMissingCredential
	}

	payload := &rag.AskPayload{
		Question:       question,
		UserRole:       string(g.session.Role()),
		ConversationID: string(g.session.CurrentID()),
	}
	if _, err := rag.EncodePayload(payload); err != nil {
		return nil, err
	}

	resp, err := g.backend.Ask(ctx, apiKey, payload)
	g.publish(ctx, err)
	if err != nil {
		g.log.Warn().Err(err).Str("conversation_id", payload.ConversationID).Msg("ask failed")
		return nil, err
	}
	g.log.Debug().
		Str("conversation_id", payload.ConversationID).
		Float64("confidence", resp.Confidence).
		Int("citations", len(resp.Citations)).
		Msg("ask completed")
	return resp, nil
}

// Ingest triggers a backend re-index.
func (g *Gateway) Ingest(ctx context.Context) (*rag.IngestResponse, error) {
	apiKey := g.session.Credential()
	if apiKey == "" {
		return nil, rag.ErrMissingCredential
	}

	resp, err := g.backend.Ingest(ctx, apiKey)
	g.publish(ctx, err)
	if err != nil {
		g.log.Warn().Err(err).Msg("ingest failed")
		return nil, err
	}
	g.log.Info().Str("status", resp.Status).Msg("ingest completed")
	return resp, nil
}

// publish maps the outcome of a completed attempt onto connectivity. A 401
// says nothing about reachability and leaves the state alone, as does a
// failure caused by the caller's own context ending.
func (g *Gateway) publish(ctx context.Context, err error) {
	if err == nil {
		g.signal.Set(types.ConnectivityConnected)
		return
	}
	if ctx.Err() != nil {
		return
	}
	var e *rag.Error
	if !errors.As(err, &e) {
		g.signal.Set(types.ConnectivityDisconnected)
		return
	}
	switch {
	case e.Kind == rag.KindNetworkError:
		g.signal.Set(types.ConnectivityDisconnected)
	case e.Status == http.StatusUnauthorized:
	case e.Status == http.StatusServiceUnavailable:
		g.signal.Set(types.ConnectivityDisconnected)
	case e.Status != 0:
		g.signal.Set(types.ConnectivityConnected)
	}
}
