package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"emirates-passport/internal/model"
)

// TestConcurrentReadModifyWriteProperty checks that concurrent updates of one
// user's value under the lock equal their sequential execution.
func TestConcurrentReadModifyWriteProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		user := model.UserKey(rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "user"))

		expected := initial
		amounts := make([]int64, numOps)
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		ul := NewUserLock()
		value := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				_ = ul.WithLock(user, func() error {
					current := value
					value = current + amount
					return nil
				})
			}(amount)
		}
		wg.Wait()

		if value != expected {
			t.Fatalf("expected %d, got %d", expected, value)
		}
		if ul.Len() != 0 {
			t.Fatalf("lock table should be empty after all holders release, got %d", ul.Len())
		}
	})
}

// TestUsersAreIndependentProperty checks per-user isolation across many users.
func TestUsersAreIndependentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")
		opsPerUser := rapid.IntRange(5, 20).Draw(t, "opsPerUser")

		ul := NewUserLock()
		counts := make(map[model.UserKey]*int, numUsers)
		for i := 0; i < numUsers; i++ {
			n := 0
			counts[model.UserKey(fmt.Sprintf("user-%d", i))] = &n
		}

		var wg sync.WaitGroup
		for user, n := range counts {
			for j := 0; j < opsPerUser; j++ {
				wg.Add(1)
				go func(user model.UserKey, n *int) {
					defer wg.Done()
					ul.Lock(user)
					defer ul.Unlock(user)
					*n++
				}(user, n)
			}
		}
		wg.Wait()

		for user, n := range counts {
			if *n != opsPerUser {
				t.Fatalf("user %s: expected %d, got %d", user, opsPerUser, *n)
			}
		}
	})
}

func TestTryLock(t *testing.T) {
	ul := NewUserLock()

	require.True(t, ul.TryLock("alice"))
	assert.True(t, ul.IsLocked("alice"))
	assert.False(t, ul.TryLock("alice"))
	assert.True(t, ul.TryLock("bob"), "other users must not be blocked")

	ul.Unlock("alice")
	ul.Unlock("bob")
	assert.False(t, ul.IsLocked("alice"))
	assert.Equal(t, 0, ul.Len())
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	ul := NewUserLock()
	ul.Unlock("nobody")
	assert.True(t, ul.TryLock("nobody"))
	ul.Unlock("nobody")
}

func TestLockContext_Timeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("alice")
	defer ul.Unlock("alice")

	err := ul.LockContext(context.Background(), "alice", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, 1, ul.Len())
}

func TestLockContext_Cancelled(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("alice")
	defer ul.Unlock("alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ul.WithLockContext(ctx, "alice", 0, func() error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLockContext_RunsFn(t *testing.T) {
	ul := NewUserLock()
	var ran atomic.Bool

	err := ul.WithLockContext(context.Background(), "alice", time.Second, func() error {
		ran.Store(true)
		assert.True(t, ul.IsLocked("alice"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran.Load())
	assert.False(t, ul.IsLocked("alice"))
}

func TestWithLock_PropagatesError(t *testing.T) {
	ul := NewUserLock()
	boom := fmt.Errorf("boom")

	err := ul.WithLock("alice", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, ul.IsLocked("alice"))
}
