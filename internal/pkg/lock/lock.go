// Package lock provides per-key locking for read-then-append sequences that
// must not interleave, such as recording a user's rank history in one scope.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// keyMutex is a channel-backed mutex with a reference count so idle keys can
// be dropped from the map.
type keyMutex struct {
	ch   chan struct{}
	refs int
}

// KeyedLock serializes work per key while letting distinct keys proceed in parallel.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyedLock creates a new KeyedLock instance.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyMutex)}
}

// ref retrieves or creates the mutex for key and takes a reference on it.
func (l *KeyedLock) ref(key string) *keyMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	return m
}

// unref drops a reference and forgets the key once nobody holds or waits on it.
func (l *KeyedLock) unref(key string, m *keyMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires the lock for key, blocking until it is available.
func (l *KeyedLock) Lock(key string) {
	m := l.ref(key)
	m.ch <- struct{}{}
}

// LockContext acquires the lock for key. If ctx ends first the error wraps
// both ErrLockTimeout and ctx.Err().
func (l *KeyedLock) LockContext(ctx context.Context, key string) error {
	m := l.ref(key)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(key, m)
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *KeyedLock) TryLock(key string) bool {
	m := l.ref(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		l.unref(key, m)
		return false
	}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (l *KeyedLock) Unlock(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.ch:
		l.unref(key, m)
	default:
	}
}

// WithLock executes fn while holding the lock for key.
func (l *KeyedLock) WithLock(ctx context.Context, key string, fn func() error) error {
	if err := l.LockContext(ctx, key); err != nil {
		return err
	}
	defer l.Unlock(key)
	return fn()
}

// IsLocked checks if key is currently held.
// This is a point-in-time check and may change immediately after.
func (l *KeyedLock) IsLocked(key string) bool {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	return ok && len(m.ch) == 1
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
