package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySyncGuardExclusivity(t *testing.T) {
	guard := NewMemorySyncGuard()
	ctx := context.Background()

	acquired, err := guard.Acquire(ctx, 1, "attempt-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second attempt on the same tag must be refused
	acquired, err = guard.Acquire(ctx, 1, "attempt-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different tag is unaffected
	acquired, err = guard.Acquire(ctx, 2, "attempt-c", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemorySyncGuardRelease(t *testing.T) {
	guard := NewMemorySyncGuard()
	ctx := context.Background()

	acquired, err := guard.Acquire(ctx, 7, "attempt-a", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, guard.Release(ctx, 7))

	acquired, err = guard.Acquire(ctx, 7, "attempt-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Releasing an absent guard is a no-op
	assert.NoError(t, guard.Release(ctx, 99))
}

func TestMemorySyncGuardTTLExpiry(t *testing.T) {
	guard := NewMemorySyncGuard()
	ctx := context.Background()

	acquired, err := guard.Acquire(ctx, 3, "crashed-attempt", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// Simulates crash recovery: the holder never releases, the TTL does
	time.Sleep(40 * time.Millisecond)

	acquired, err = guard.Acquire(ctx, 3, "fresh-attempt", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
