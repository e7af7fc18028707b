package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresence implements Presence over redis keys.
//
// A user is reachable when their presence key exists (heartbeat with TTL)
// and their do-not-disturb flag is not set.
type RedisPresence struct {
	rdb *redis.Client

	// HeartbeatTTL is how long a heartbeat keeps a user online.
	HeartbeatTTL time.Duration
}

func NewRedisPresence(rdb *redis.Client) *RedisPresence {
	return &RedisPresence{rdb: rdb, HeartbeatTTL: 90 * time.Second}
}

func presenceKey(userID string) string { return "presence:online:" + userID }
func dndKey(userID string) string      { return "presence:dnd:" + userID }

// Heartbeat marks the user online for the TTL window.
func (p *RedisPresence) Heartbeat(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	return p.rdb.Set(ctx, presenceKey(userID), "1", p.HeartbeatTTL).Err()
}

// SetDoNotDisturb toggles the do-not-disturb flag.
func (p *RedisPresence) SetDoNotDisturb(ctx context.Context, userID string, on bool) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if on {
		return p.rdb.Set(ctx, dndKey(userID), "1", 0).Err()
	}
	return p.rdb.Del(ctx, dndKey(userID)).Err()
}

// Reachable reports whether the user can receive a call invite right now.
func (p *RedisPresence) Reachable(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}
	online, err := p.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	if online == 0 {
		return false, nil
	}
	dnd, err := p.rdb.Exists(ctx, dndKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return dnd == 0, nil
}
