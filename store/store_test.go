package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// exerciseStore runs the Store contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	// Miss on empty store.
	val, found, err := s.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	// Set and get.
	require.NoError(t, s.Set(ctx, "layer-a", []byte(`{"name":"layer-a"}`)))
	val, found, err = s.Get(ctx, "layer-a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"layer-a"}`, string(val))

	// Overwrite.
	require.NoError(t, s.Set(ctx, "layer-a", []byte(`{"name":"layer-a","v":2}`)))
	val, _, err = s.Get(ctx, "layer-a")
	assert.NoError(t, err)
	assert.Equal(t, `{"name":"layer-a","v":2}`, string(val))

	require.NoError(t, s.Set(ctx, "cache_layers", []byte(`["layer-a"]`)))
	keys, err := s.Keys(ctx)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"layer-a", "cache_layers"}, keys)

	// Remove is idempotent.
	assert.NoError(t, s.Remove(ctx, "layer-a"))
	assert.NoError(t, s.Remove(ctx, "layer-a"))
	_, found, err = s.Get(ctx, "layer-a")
	assert.NoError(t, err)
	assert.False(t, found)

	// Probe leaves nothing behind.
	assert.NoError(t, Probe(ctx, s))
	keys, err = s.Keys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"cache_layers"}, keys)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'
	val, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(val))
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Set(ctx, "k", nil), ErrClosed)
	assert.Error(t, Probe(ctx, s))
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "pesho-layer6", []byte("blob")))
	require.NoError(t, s.Close())

	s, err = NewSQLite(ctx, path, WithQueryTimeout(time.Second))
	require.NoError(t, err)
	defer s.Close()
	val, found, err := s.Get(ctx, "pesho-layer6")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "blob", string(val))
}

func TestRedisStore(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedis(client)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStorePrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedis(client, WithPrefix("app"))

	require.NoError(t, s.Set(ctx, "layer", []byte("v")))
	assert.True(t, mr.Exists("app:layer"))
	require.NoError(t, mr.Set("other", "x"))

	keys, err := s.Keys(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"layer"}, keys)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithQueryTimeout(100*time.Millisecond))
	mr.Close()
	assert.Error(t, Probe(context.Background(), s))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &memoryStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, Probe(ctx, s))
	assert.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Driver: DriverRedis, RedisURL: "redis://" + mr.Addr(), Prefix: "p"})
	require.NoError(t, err)
	assert.NoError(t, Probe(ctx, s))
	assert.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: DriverRedis})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "etcd"})
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}
