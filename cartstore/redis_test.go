package cartstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	b := NewRedisBackend(client)

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, KeyPrefix+"a", []byte("1")))
	require.NoError(t, b.Set(ctx, KeyPrefix+"b", []byte("2")))
	require.NoError(t, b.Set(ctx, "other", []byte("3")))

	v, err := b.Get(ctx, KeyPrefix+"a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	keys, err := b.Keys(ctx, KeyPrefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeyPrefix + "a", KeyPrefix + "b"}, keys)

	require.NoError(t, b.Delete(ctx, KeyPrefix+"a"))
	_, err = b.Get(ctx, KeyPrefix+"a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreOverRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := New(NewRedisBackend(client), Options{IdleDelay: 5 * time.Millisecond, WritesPerSecond: 1000})
	defer s.Close(ctx)

	state := sampleState(t)
	s.Save(state, "ana@example.com")
	require.Eventually(t, func() bool {
		return mr.Exists(Namespace("ana@example.com"))
	}, time.Second, 5*time.Millisecond)

	assert.True(t, s.Load(ctx, "ana@example.com").Equal(state))

	s.ClearAll(ctx)
	assert.False(t, mr.Exists(Namespace("ana@example.com")))
}

func TestStoreOverUnreachableRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := New(NewRedisBackend(client), Options{IdleDelay: time.Hour, Timeout: 200 * time.Millisecond})
	defer s.Close(ctx)

	mr.Close()
	assert.True(t, s.Load(ctx, "ana@example.com").IsEmpty())
	s.Save(sampleState(t), "ana@example.com")
	assert.NoError(t, s.Flush(ctx))
	s.ClearAll(ctx)
}
