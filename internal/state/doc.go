// Package state provides the persistent settings store: a small key/value
// contract with file, BoltDB, Redis and in-memory backends, plus the typed
// Settings view that owns the persisted keys and the log encoding.
package state

import "github.com/user/ragchat/internal/types"

// Compile-time interface compliance checks.
var _ types.Store = (*FileStore)(nil)
var _ types.Store = (*BoltStore)(nil)
var _ types.Store = (*RedisStore)(nil)
var _ types.Store = (*MemoryStore)(nil)
