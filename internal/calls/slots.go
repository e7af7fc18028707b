package calls

import (
	"context"
	"time"

	"meetnmart/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisSlots enforces one active call per user across API instances.
// The slot value is the owning session id; TTL bounds leakage on crash.
type RedisSlots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSlots(rdb *redis.Client, ttl time.Duration) *RedisSlots {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisSlots{rdb: rdb, ttl: ttl}
}

func slotKey(userID string) string { return "calls:slot:" + userID }

func (s *RedisSlots) Acquire(ctx context.Context, userID, sessionID string) (bool, error) {
	return utils.AcquireCallSlot(ctx, s.rdb, slotKey(userID), sessionID, s.ttl)
}

func (s *RedisSlots) Release(ctx context.Context, userID, sessionID string) error {
	return utils.ReleaseCallSlot(ctx, s.rdb, slotKey(userID), sessionID)
}
