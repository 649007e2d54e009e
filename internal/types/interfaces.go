// internal/types/interfaces.go
package types

import (
	"context"
)

// Store is a durable string key/value store. Writes are synchronous.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SessionContext is the read side of the active session handed to the
// request gateway.
type SessionContext interface {
	Credential() string
	Role() Role
	CurrentID() ConversationID
}

// SessionResetter replaces the active conversation id.
type SessionResetter interface {
	Reset(ctx context.Context) (ConversationID, error)
}

// ConnectivitySink receives connectivity transitions.
type ConnectivitySink interface {
	Set(state ConnectivityState)
}
