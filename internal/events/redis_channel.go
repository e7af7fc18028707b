package events

import (
	"context"
	"encoding/json"
	"fmt"

	"meetnmart/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisChannel adapts redis pub/sub to the notification channel contract.
// Redis pub/sub is fire-and-forget per connection; the backend re-publishes
// undelivered events, which is where the at-least-once behavior comes from.
type RedisChannel struct {
	rdb     *redis.Client
	channel string
}

// NewRedisChannel creates a channel adapter on the given redis channel name.
func NewRedisChannel(rdb *redis.Client, channel string) (*RedisChannel, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if channel == "" {
		channel = "meetnmart.events"
	}
	return &RedisChannel{rdb: rdb, channel: channel}, nil
}

// Publish sends an event onto the channel.
func (c *RedisChannel) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.rdb.Publish(ctx, c.channel, body).Err()
}

// Run subscribes and feeds events into the dispatcher until ctx is canceled.
// Malformed payloads are logged and skipped; they must not stall the loop.
func (c *RedisChannel) Run(ctx context.Context, d *Dispatcher) error {
	sub := c.rdb.Subscribe(ctx, c.channel)
	defer sub.Close()

	// Fail fast if the subscription could not be established.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.From(ctx).Warn("undecodable channel event", "err", err)
				continue
			}
			d.Dispatch(ctx, e)
		}
	}
}
