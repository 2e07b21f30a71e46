package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisTracker(client, 2*time.Minute), mr
}

func TestRedisTracker_OnlineOffline(t *testing.T) {
	tracker, _ := setupTracker(t)
	ctx := context.Background()

	online, err := tracker.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tracker.Online(ctx, 42))

	online, err = tracker.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, tracker.Offline(ctx, 42))

	online, err = tracker.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisTracker_MarkerExpires(t *testing.T) {
	tracker, mr := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Online(ctx, 42))

	// A crashed process never calls Offline; the TTL cleans up
	mr.FastForward(3 * time.Minute)

	online, err := tracker.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisTracker_RefreshExtendsTTL(t *testing.T) {
	tracker, mr := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Online(ctx, 42))

	mr.FastForward(90 * time.Second)
	require.NoError(t, tracker.Refresh(ctx, 42))
	mr.FastForward(90 * time.Second)

	online, err := tracker.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.True(t, online)
}
