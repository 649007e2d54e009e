// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ConversationID string
type MessageID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Valid reports whether id parses as a UUID.
func (id ConversationID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
