//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelock "github.com/kilianp07/fieldops/core/lock"
	"github.com/kilianp07/fieldops/test/util"
)

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	addr, cleanup, err := util.StartRedis(ctx)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer cleanup()

	l, err := NewRedisLocker(ctx, Config{Addr: addr})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	key := corelock.Key("2024-01-15")
	held, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, corelock.ErrLockHeld)

	require.NoError(t, held.Release(ctx))
	again, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	// A stale holder must not release the new owner's lock.
	require.NoError(t, held.Release(ctx))
	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, corelock.ErrLockHeld)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLockerExpiry(t *testing.T) {
	ctx := context.Background()
	addr, cleanup, err := util.StartRedis(ctx)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer cleanup()

	l, err := NewRedisLocker(ctx, Config{Addr: addr})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	_, err = l.Acquire(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		lk, err := l.Acquire(ctx, "k", time.Minute)
		if err != nil {
			return false
		}
		return lk.Release(ctx) == nil
	}, 5*time.Second, 50*time.Millisecond)
}
