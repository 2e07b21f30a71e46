package presence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tracker records which users currently hold at least one live connection.
// Tracking is best-effort and never affects relay correctness; errors are
// logged by callers and otherwise ignored.
type Tracker interface {
	// Online marks the user online with a TTL.
	Online(ctx context.Context, userID int64) error
	// Refresh extends the TTL, called on heartbeat pongs.
	Refresh(ctx context.Context, userID int64) error
	// Offline removes the online marker on disconnect.
	Offline(ctx context.Context, userID int64) error
	// IsOnline reports whether the user has a live marker.
	IsOnline(ctx context.Context, userID int64) (bool, error)
}

// RedisTracker keeps online markers in Redis with a TTL so that markers
// from a crashed process expire on their own.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl}
}

func (t *RedisTracker) Online(ctx context.Context, userID int64) error {
	return t.client.Set(ctx, presenceKey(userID), time.Now().UnixMilli(), t.ttl).Err()
}

func (t *RedisTracker) Refresh(ctx context.Context, userID int64) error {
	return t.client.Expire(ctx, presenceKey(userID), t.ttl).Err()
}

func (t *RedisTracker) Offline(ctx context.Context, userID int64) error {
	return t.client.Del(ctx, presenceKey(userID)).Err()
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID int64) (bool, error) {
	n, err := t.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// NoopTracker is used when Redis is disabled.
type NoopTracker struct{}

func (NoopTracker) Online(ctx context.Context, userID int64) error  { return nil }
func (NoopTracker) Refresh(ctx context.Context, userID int64) error { return nil }
func (NoopTracker) Offline(ctx context.Context, userID int64) error { return nil }
func (NoopTracker) IsOnline(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}
