// Package session holds the active session context: credential, role and
// conversation id, restored from and written through to the settings store.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/ragchat/internal/state"
	"github.com/user/ragchat/internal/types"
	logx "github.com/user/ragchat/pkg/logger"
)

// Session is safe for concurrent use. Readers always observe a complete
// conversation id; Reset swaps it under the lock after the new id is stored.
type Session struct {
	settings *state.Settings

	mu             sync.RWMutex
	credential     string
	role           types.Role
	conversationID types.ConversationID
}

// Open restores the session from settings. When no conversation id is
// stored a fresh one is generated and persisted.
func Open(ctx context.Context, settings *state.Settings) (*Session, error) {
	credential, err := settings.Credential(ctx)
	if err != nil {
		return nil, err
	}
	role, err := settings.Role(ctx)
	if err != nil {
		return nil, err
	}
	id, ok, err := settings.ConversationID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		id = types.NewConversationID()
		if err := settings.SetConversationID(ctx, id); err != nil {
			return nil, fmt.Errorf("persist conversation id: %w", err)
		}
		logx.Debug().Str("conversation_id", string(id)).Msg("started new conversation")
	}

	return &Session{
		settings:       settings,
		credential:     credential,
		role:           role,
		conversationID: id,
	}, nil
}

func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// SetCredential persists key, then makes it visible. Empty clears it.
func (s *Session) SetCredential(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settings.SetCredential(ctx, key); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.credential = key
	return nil
}

func (s *Session) Role() types.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) SetRole(ctx context.Context, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settings.SetRole(ctx, role); err != nil {
		return fmt.Errorf("persist role: %w", err)
	}
	s.role = role
	return nil
}

func (s *Session) CurrentID() types.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Reset starts a new conversation. Credential and role are untouched.
func (s *Session) Reset(ctx context.Context) (types.ConversationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.NewConversationID()
	if err := s.settings.SetConversationID(ctx, id); err != nil {
		return "", fmt.Errorf("persist conversation id: %w", err)
	}
	prev := s.conversationID
	s.conversationID = id
	logx.Info().Str("previous", string(prev)).Str("conversation_id", string(id)).Msg("conversation reset")
	return id, nil
}

var (
	_ types.SessionContext  = (*Session)(nil)
	_ types.SessionResetter = (*Session)(nil)
)
