// internal/state/open.go
package state

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/user/ragchat/internal/types"
)

const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend string
	// DataDir holds settings.json or settings.db when Path is empty.
	DataDir string
	Path    string
	Redis   RedisConfig
}

// Open builds the Store named by opts.Backend. An empty backend means file.
func Open(ctx context.Context, opts Options) (types.Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		path := opts.Path
		if path == "" {
			path = filepath.Join(opts.DataDir, "settings.json")
		}
		return NewFileStore(path), nil
	case BackendBolt:
		path := opts.Path
		if path == "" {
			path = filepath.Join(opts.DataDir, "settings.db")
		}
		return OpenBoltStore(path)
	case BackendRedis:
		if opts.Redis.URL == "" {
			return nil, fmt.Errorf("redis backend requires store.redis_url")
		}
		return OpenRedisStore(ctx, &opts.Redis)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
