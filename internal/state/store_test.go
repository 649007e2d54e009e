// internal/state/store_test.go
package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/user/ragchat/internal/types"
)

// StoreSuite runs the same contract against every backend.
type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) types.Store
	store types.Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.open(s.T())
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreSuite) TestMissingKey() {
	v, ok, err := s.store.Get(context.Background(), "absent")
	require.NoError(s.T(), err)
	s.False(ok)
	s.Empty(v)
}

func (s *StoreSuite) TestSetGetOverwrite() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Set(ctx, KeyAPIKey, "sk-one"))
	require.NoError(s.T(), s.store.Set(ctx, KeyAPIKey, "sk-two"))

	v, ok, err := s.store.Get(ctx, KeyAPIKey)
	require.NoError(s.T(), err)
	s.True(ok)
	s.Equal("sk-two", v)
}

func (s *StoreSuite) TestDeleteLeavesOtherKeys() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Set(ctx, KeyAPIKey, "sk"))
	require.NoError(s.T(), s.store.Set(ctx, KeyMessages, "[]"))
	require.NoError(s.T(), s.store.Delete(ctx, KeyMessages))
	require.NoError(s.T(), s.store.Delete(ctx, "never-set"))

	_, ok, err := s.store.Get(ctx, KeyMessages)
	require.NoError(s.T(), err)
	s.False(ok)

	v, ok, err := s.store.Get(ctx, KeyAPIKey)
	require.NoError(s.T(), err)
	s.True(ok)
	s.Equal("sk", v)
}

func (s *StoreSuite) TestEmptyValue() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Set(ctx, "k", ""))
	v, ok, err := s.store.Get(ctx, "k")
	require.NoError(s.T(), err)
	s.True(ok)
	s.Equal("", v)
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) types.Store {
		return NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.json"))
	}})
}

func TestBoltStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) types.Store {
		s, err := OpenBoltStore(filepath.Join(t.TempDir(), "settings.db"))
		require.NoError(t, err)
		return s
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) types.Store {
		mr := miniredis.RunT(t)
		s, err := OpenRedisStore(context.Background(), &RedisConfig{URL: "redis://" + mr.Addr(), Prefix: "test:"})
		require.NoError(t, err)
		return s
	}})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) types.Store {
		return NewMemoryStore()
	}})
}

func TestRedisStorePrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedisStore(context.Background(), &RedisConfig{URL: "redis://" + mr.Addr(), Prefix: "ragchat:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), KeyUserRole, "internal"))
	got, err := mr.Get("ragchat:" + KeyUserRole)
	require.NoError(t, err)
	require.Equal(t, "internal", got)
}

func TestFileStoreAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewFileStore(path)
	require.NoError(t, s.Set(context.Background(), "k", "v"))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "temp file should not exist after successful save")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileStore(path).Get(context.Background(), "k")
	require.Error(t, err)
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, backend := range []string{"", BackendFile, BackendBolt, BackendMemory} {
		s, err := Open(ctx, Options{Backend: backend, DataDir: dir})
		require.NoError(t, err, backend)
		require.NoError(t, s.Set(ctx, "k", "v"), backend)
		require.NoError(t, s.Close(), backend)
	}

	_, err := Open(ctx, Options{Backend: BackendRedis})
	require.Error(t, err)
	_, err = Open(ctx, Options{Backend: "etcd"})
	require.Error(t, err)
}
