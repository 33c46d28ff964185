package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher is the part of a Redis client RedisSink needs.
// *redis.Client satisfies it.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes each batch as JSON on a Redis channel.
type RedisSink struct {
	client  RedisPublisher
	channel string
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink creates a sink publishing on channel.
func NewRedisSink(client RedisPublisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, b Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return Permanent(fmt.Errorf("encode batch: %w", err))
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// NewRedisClient connects to the Redis server at url and checks it responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
