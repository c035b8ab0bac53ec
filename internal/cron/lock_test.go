package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	a, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// b never owned the key, so its release leaves a's lock alone.
	require.NoError(t, b.Release(ctx))
	_, err = store.Get(ctx, "lock:cron")
	require.NoError(t, err)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockDoesNotDeleteForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	ctx := context.Background()
	l, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["lock:cron"] = "someone-else"
	require.NoError(t, l.Release(ctx))
	v, err := store.Get(ctx, "lock:cron")
	require.NoError(t, err)
	require.Equal(t, "someone-else", v)
}
