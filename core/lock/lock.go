// Package lock guards target dates so that at most one run per date is
// active at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLockHeld is returned when the date is already locked by another run.
var ErrLockHeld = errors.New("run lock already held")

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker acquires exclusive locks keyed by name.
type Locker interface {
	// Acquire returns ErrLockHeld when key is held. The lock expires after
	// ttl if it is never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Key returns the lock key of a target date.
func Key(date string) string { return "fieldops:run:" + date }

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]*memoryLock
	clock func() time.Time
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]*memoryLock), clock: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if cur, ok := m.held[key]; ok && now.Before(cur.expires) {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}
	l := &memoryLock{locker: m, key: key, expires: now.Add(ttl)}
	m.held[key] = l
	return l, nil
}

type memoryLock struct {
	locker  *MemoryLocker
	key     string
	expires time.Time
	once    sync.Once
}

func (l *memoryLock) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		// an expired lock may have been taken over
		if l.locker.held[l.key] == l {
			delete(l.locker.held, l.key)
		}
		l.locker.mu.Unlock()
	})
	return nil
}
