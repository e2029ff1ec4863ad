// Package lock provides per-user mutual exclusion for ledger read-modify-write
// cycles. Different users never contend with each other.
package lock

import (
	"context"
	"sync"
	"time"

	"emirates-passport/internal/model"
)

// entry is a mutex with a count of goroutines holding or waiting for it.
// The entry is dropped from the table once nobody references it.
type entry struct {
	mu   chan struct{}
	refs int
}

// UserLock serialises ledger mutations per UserKey.
type UserLock struct {
	mu    sync.Mutex
	locks map[model.UserKey]*entry
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[model.UserKey]*entry)}
}

func (ul *UserLock) acquire(user model.UserKey) *entry {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e, ok := ul.locks[user]
	if !ok {
		e = &entry{mu: make(chan struct{}, 1)}
		ul.locks[user] = e
	}
	e.refs++
	return e
}

func (ul *UserLock) release(user model.UserKey, e *entry) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(ul.locks, user)
	}
}

// Lock blocks until the user's lock is held.
func (ul *UserLock) Lock(user model.UserKey) {
	e := ul.acquire(user)
	e.mu <- struct{}{}
}

// Unlock releases the user's lock. Unlocking a user that is not locked is a no-op.
func (ul *UserLock) Unlock(user model.UserKey) {
	ul.mu.Lock()
	e, ok := ul.locks[user]
	ul.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-e.mu:
		ul.release(user, e)
	default:
	}
}

// TryLock acquires the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (ul *UserLock) TryLock(user model.UserKey) bool {
	e := ul.acquire(user)
	select {
	case e.mu <- struct{}{}:
		return true
	default:
		ul.release(user, e)
		return false
	}
}

// LockContext waits for the user's lock until ctx is done or timeout elapses.
// A zero timeout waits only on ctx.
func (ul *UserLock) LockContext(ctx context.Context, user model.UserKey, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e := ul.acquire(user)
	select {
	case e.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.release(user, e)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(user model.UserKey, fn func() error) error {
	ul.Lock(user)
	defer ul.Unlock(user)
	return fn()
}

// WithLockContext executes fn while holding the user's lock, giving up with
// ErrLockTimeout or the context error if the lock cannot be acquired.
func (ul *UserLock) WithLockContext(ctx context.Context, user model.UserKey, timeout time.Duration, fn func() error) error {
	if err := ul.LockContext(ctx, user, timeout); err != nil {
		return err
	}
	defer ul.Unlock(user)
	return fn()
}

// IsLocked reports whether the user's lock is currently held.
// This is a point-in-time check.
func (ul *UserLock) IsLocked(user model.UserKey) bool {
	ul.mu.Lock()
	e, ok := ul.locks[user]
	ul.mu.Unlock()
	return ok && len(e.mu) == 1
}

// Len returns the number of users with a held or awaited lock.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
