// Package locks provides the single-flight lock taken around a refresh cycle.
//
// Two implementations exist:
//   - LocalLocker guards a single process
//   - RedsyncLocker uses the Redlock algorithm from go-redsync/redsync/v4 so
//     that several instances sharing one Redis never run overlapping cycles
//
// Both are non-blocking: TryLock either acquires immediately or returns
// ErrLockHeld.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockHeld is returned when another holder owns the key
var ErrLockHeld = errors.New("lock already held")

// Lock is an acquired lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker acquires named locks without waiting
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// LocalLocker is an in-process Locker. Expired entries are treated as free.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	token uint64
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// TryLock acquires key for ttl or returns ErrLockHeld
func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[key]; ok && l.now().Before(entry.expires) {
		return nil, ErrLockHeld
	}

	l.token++
	l.held[key] = localEntry{token: l.token, expires: l.now().Add(ttl)}
	return &localLock{locker: l, key: key, token: l.token}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (l *localLock) Key() string {
	return l.key
}

// Release frees the key unless it has since been taken by someone else
func (l *localLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if entry, ok := l.locker.held[l.key]; ok && entry.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
