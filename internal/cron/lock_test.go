package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLockStore struct {
	values map[string]string
}

func (m *memLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memLockStore) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExclusive(t *testing.T) {
	t.Setenv("LASTCALL_WORKER_ID", "cron-a")
	store := &memLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "lc:lock:cron-worker", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "lc:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(store.values["lc:lock:cron-worker"], "cron-a:"))

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	// a non-owner release leaves the lock in place
	require.NoError(t, second.Release(context.Background()))
	require.Contains(t, store.values, "lc:lock:cron-worker")

	require.NoError(t, first.Release(context.Background()))
	require.NotContains(t, store.values, "lc:lock:cron-worker")

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &memLockStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "lc:lock:cron-worker", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and another worker took it
	store.values["lc:lock:cron-worker"] = "cron-b:other"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "cron-b:other", store.values["lc:lock:cron-worker"])
}
