package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	held, err := l.Acquire(ctx, Key("2024-01-15"), time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, Key("2024-01-15"), time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	other, err := l.Acquire(ctx, Key("2024-01-16"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, held.Release(ctx))
	require.NoError(t, held.Release(ctx))
	again, err := l.Acquire(ctx, Key("2024-01-15"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.clock = func() time.Time { return now }
	_, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}
