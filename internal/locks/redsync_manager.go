package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	apperrors "event-enricher/internal/common/errors"
	"event-enricher/internal/redis"
)

// RedsyncLocker implements Locker with the Redlock algorithm.
// Keys are namespaced under "lock:".
type RedsyncLocker struct {
	redsync *redsync.Redsync
}

// NewRedsyncLocker creates a distributed locker over an existing Redis connection
func NewRedsyncLocker(redisClient *redis.Client) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, apperrors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GoRedis())

	return &RedsyncLocker{redsync: redsync.New(pool)}, nil
}

// TryLock makes a single acquisition attempt. The lock expires after ttl even
// if the holder never releases it.
func (r *RedsyncLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	mutex := r.redsync.NewMutex(fmt.Sprintf("lock:%s", key), redsync.WithExpiry(ttl))

	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrLockHeld
		}
		return nil, apperrors.ConnectionError("failed to acquire distributed lock", err)
	}

	return &redsyncLock{mutex: mutex, key: key}, nil
}

type redsyncLock struct {
	mutex *redsync.Mutex
	key   string
}

func (l *redsyncLock) Key() string {
	return l.key
}

func (l *redsyncLock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return apperrors.InternalError("failed to release distributed lock", err)
	}
	if !ok {
		return apperrors.InternalError("distributed lock expired before release", nil)
	}
	return nil
}
