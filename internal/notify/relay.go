package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRelay mirrors every message onto a Redis pub/sub channel so
// observers outside this process can follow a flow. Channel names are
// "<prefix>:agent-updates-<flowID>".
type RedisRelay struct {
	client *redis.Client
	prefix string
}

// NewRedisRelay creates a relay publishing through client.
func NewRedisRelay(client *redis.Client, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = "appforge"
	}
	return &RedisRelay{client: client, prefix: prefix}
}

// ChannelFor returns the Redis channel used for flowID.
func (r *RedisRelay) ChannelFor(flowID string) string {
	return r.prefix + ":" + Channel(flowID)
}

// Deliver implements Observer.
func (r *RedisRelay) Deliver(ctx context.Context, flowID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.ChannelFor(flowID), data).Err(); err != nil {
		return fmt.Errorf("relay to redis: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
