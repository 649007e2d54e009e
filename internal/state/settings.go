// internal/state/settings.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/ragchat/internal/types"
	"github.com/user/ragchat/pkg/rag"
	logx "github.com/user/ragchat/pkg/logger"
)

// Persisted keys. Each setting lives under its own key so that clearing the
// log never touches the credential or role.
const (
	KeyAPIKey         = "rag_api_key"
	KeyUserRole       = "rag_user_role"
	KeyConversationID = "rag_conversation_id"
	KeyMessages       = "rag_chat_messages"
)

// TimestampFormat is the instant format used in the persisted log and in
// JSON exports.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Settings is the typed view over a Store.
type Settings struct {
	store types.Store
}

func NewSettings(store types.Store) *Settings {
	return &Settings{store: store}
}

// Store returns the underlying key/value store.
func (s *Settings) Store() types.Store {
	return s.store
}

func (s *Settings) Credential(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, KeyAPIKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return v, nil
}

// SetCredential stores key. An empty key removes the entry.
func (s *Settings) SetCredential(ctx context.Context, key string) error {
	if key == "" {
		return s.store.Delete(ctx, KeyAPIKey)
	}
	return s.store.Set(ctx, KeyAPIKey, key)
}

// Role returns the stored role, falling back to the default when the entry is
// missing or not a valid role.
func (s *Settings) Role(ctx context.Context) (types.Role, error) {
	v, ok, err := s.store.Get(ctx, KeyUserRole)
	if err != nil {
		return "", fmt.Errorf("load role: %w", err)
	}
	if !ok {
		return types.DefaultRole, nil
	}
	role := types.Role(v)
	if !role.Valid() {
		logx.Warn().Str("value", v).Msg("stored role invalid, using default")
		return types.DefaultRole, nil
	}
	return role, nil
}

func (s *Settings) SetRole(ctx context.Context, role types.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return s.store.Set(ctx, KeyUserRole, string(role))
}

// ConversationID returns the stored id and whether one was present.
func (s *Settings) ConversationID(ctx context.Context) (types.ConversationID, bool, error) {
	v, ok, err := s.store.Get(ctx, KeyConversationID)
	if err != nil {
		return "", false, fmt.Errorf("load conversation id: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return types.ConversationID(v), true, nil
}

func (s *Settings) SetConversationID(ctx context.Context, id types.ConversationID) error {
	return s.store.Set(ctx, KeyConversationID, string(id))
}

// Messages loads the persisted log. A corrupt entry yields an empty log and
// a warning; only store failures are returned.
func (s *Settings) Messages(ctx context.Context) ([]types.Message, error) {
	v, ok, err := s.store.Get(ctx, KeyMessages)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if !ok || v == "" {
		return []types.Message{}, nil
	}
	msgs, err := DeserializeMessages([]byte(v))
	if err != nil {
		logx.Warn().Err(err).Msg("discarding corrupt conversation log")
		return []types.Message{}, nil
	}
	return msgs, nil
}

func (s *Settings) SaveMessages(ctx context.Context, msgs []types.Message) error {
	data, err := SerializeMessages(msgs)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, KeyMessages, string(data))
}

func (s *Settings) DeleteMessages(ctx context.Context) error {
	return s.store.Delete(ctx, KeyMessages)
}

// storedMessage is the persisted shape of types.Message.
type storedMessage struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Data      *rag.AskResponse `json:"data,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// SerializeMessages encodes the log with UTC millisecond timestamps.
func SerializeMessages(msgs []types.Message) ([]byte, error) {
	out := make([]storedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = storedMessage{
			ID:        string(m.ID),
			Role:      string(m.Role),
			Content:   m.Content,
			Data:      m.Data,
			Timestamp: m.Timestamp.UTC().Format(TimestampFormat),
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	return data, nil
}

// DeserializeMessages decodes a persisted log. Any malformed entry fails the
// whole log with a StorageCorrupt error.
func DeserializeMessages(data []byte) ([]types.Message, error) {
	var stored []storedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, corrupt(err)
	}

	msgs := make([]types.Message, 0, len(stored))
	for i, sm := range stored {
		ts, err := time.Parse(time.RFC3339, sm.Timestamp)
		if err != nil {
			return nil, corrupt(fmt.Errorf("message %d timestamp: %w", i, err))
		}
		m := types.Message{
			ID:        types.MessageID(sm.ID),
			Role:      types.Author(sm.Role),
			Content:   sm.Content,
			Timestamp: ts,
		}
		if m.ID == "" {
			m.ID = types.NewMessageID()
		}
		switch m.Role {
		case types.AuthorUser:
		case types.AuthorAgent:
			if sm.Data != nil {
				if sm.Data.Notes == nil {
					sm.Data.Notes = []string{}
				}
				if err := rag.ValidateResponse(sm.Data); err != nil {
					return nil, corrupt(fmt.Errorf("message %d data: %w", i, err))
				}
				m.Data = sm.Data
			}
		default:
			return nil, corrupt(fmt.Errorf("message %d: unknown role %q", i, sm.Role))
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func corrupt(err error) error {
	return &rag.Error{Kind: rag.KindStorageCorrupt, Message: "corrupt conversation log", Err: err}
}
