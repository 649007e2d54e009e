// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/user/ragchat/internal/chat"
	"github.com/user/ragchat/internal/gateway"
	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
	logx "github.com/user/ragchat/pkg/logger"
)

// Session is the part of the chat session the API reads and edits.
type Session interface {
	types.SessionContext
	SetCredential(ctx context.Context, key string) error
	SetRole(ctx context.Context, role types.Role) error
}

// Connectivity reports the last known backend reachability.
type Connectivity interface {
	Get() types.ConnectivityState
}

// Server is a local HTTP handler exposing the chat session.
type Server struct {
	chat    *chat.Service
	session Session
	signal  Connectivity
	mux     *http.ServeMux
}

// NewServer creates a new API Server for the given chat service, session and
// connectivity signal.
func NewServer(svc *chat.Service, session Session, signal Connectivity) *Server {
	s := &Server{
		chat:    svc,
		session: session,
		signal:  signal,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /api/conversation/clear", s.handleClear)
	s.mux.HandleFunc("PUT /api/settings", s.handleSettings)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	Connectivity   types.ConnectivityState `json:"connectivity"`
	ConversationID types.ConversationID    `json:"conversation_id"`
	Role           types.Role              `json:"role"`
	CredentialSet  bool                    `json:"credential_set"`
	MessageCount   int                     `json:"message_count"`
	Ask            chat.State              `json:"ask"`
	Ingest         chat.State              `json:"ingest"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Connectivity:   s.signal.Get(),
		ConversationID: s.session.CurrentID(),
		Role:           s.session.Role(),
		CredentialSet:  s.session.Credential() != "",
		MessageCount:   s.chat.Log().Len(),
		Ask:            s.chat.AskState(),
		Ingest:         s.chat.IngestState(),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chat.Log().Messages())
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg, err := s.chat.Send(r.Context(), req.Question)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.chat.Ingest(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id, err := s.chat.Clear(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": string(id)})
}

// settingsRequest is the JSON body for PUT /api/settings. Absent fields are
// left unchanged; an empty api_key clears the credential.
type settingsRequest struct {
	APIKey *string `json:"api_key"`
	Role   *string `json:"role"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var role types.Role
	if req.Role != nil {
		parsed, err := types.ParseRole(*req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}

	ctx := r.Context()
	if req.APIKey != nil {
		if err := s.session.SetCredential(ctx, *req.APIKey); err != nil {
			logx.Error().Err(err).Msg("update credential failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	if role != "" {
		if err := s.session.SetRole(ctx, role); err != nil {
			logx.Error().Err(err).Msg("update role failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
	s.handleState(w, r)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	exp, err := s.chat.Log().Export(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.Write(exp.Data)
}

// statusFor maps a chat or backend failure onto a local HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion),
		errors.Is(err, rag.ErrMissingCredential),
		errors.Is(err, rag.ErrPayloadInvalid):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrPending):
		return http.StatusConflict
	case rag.KindOf(err) != "":
		return http.StatusBadGateway
	default:
		logx.Error().Err(err).Msg("api request failed")
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// failureResponse is the body of a failed ask, ingest or clear.
type failureResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), failureResponse{
		Error:     err.Error(),
		Kind:      string(rag.KindOf(err)),
		Hint:      gateway.Hint(err),
		Retryable: gateway.Retryable(err),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
