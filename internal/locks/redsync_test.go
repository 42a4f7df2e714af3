package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/redis"
)

func TestRedsyncLocker(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	redisClient, err := redis.NewClient(context.Background(), &redis.Config{Address: s.Addr()})
	require.NoError(t, err)
	defer redisClient.Close()

	locker, err := NewRedsyncLocker(redisClient)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		lock, err := locker.TryLock(ctx, "events:refresh", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "events:refresh", lock.Key())
		assert.True(t, s.Exists("lock:events:refresh"))

		require.NoError(t, lock.Release(ctx))
		assert.False(t, s.Exists("lock:events:refresh"))
	})

	t.Run("contention returns ErrLockHeld", func(t *testing.T) {
		first, err := locker.TryLock(ctx, "contended", 30*time.Second)
		require.NoError(t, err)
		defer first.Release(ctx)

		second, err := locker.TryLock(ctx, "contended", 30*time.Second)
		assert.ErrorIs(t, err, ErrLockHeld)
		assert.Nil(t, second)
	})

	t.Run("expired lock can be reacquired", func(t *testing.T) {
		_, err := locker.TryLock(ctx, "short", time.Second)
		require.NoError(t, err)

		s.FastForward(2 * time.Second)

		lock, err := locker.TryLock(ctx, "short", time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewRedsyncLocker(nil)
		assert.Error(t, err)
	})
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	first, err := locker.TryLock(ctx, "events:refresh", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "events:refresh", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	_, err = locker.TryLock(ctx, "other", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, first.Release(ctx))
	second, err := locker.TryLock(ctx, "events:refresh", time.Minute)
	require.NoError(t, err)

	// A stale holder cannot release a newer holder's lock.
	require.NoError(t, first.Release(ctx))
	_, err = locker.TryLock(ctx, "events:refresh", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, second.Release(ctx))
}

func TestLocalLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	_, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.TryLock(ctx, "k", time.Minute)
	assert.NoError(t, err)
}
