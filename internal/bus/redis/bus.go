package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quantdash/scalpbot/internal/domain"
)

// defaultStreamMaxLen is the approximate maximum length for event streams,
// enforced via XADD MAXLEN ~.
const defaultStreamMaxLen int64 = 10000

// Bus implements domain.EventBus using Redis Pub/Sub for ephemeral
// messaging and capped Redis Streams for a short durable trade history.
type Bus struct {
	rdb       *redis.Client
	streamMax int64
}

// NewBus creates a Bus backed by the given Client.
func NewBus(c *Client) *Bus {
	return &Bus{rdb: c.Underlying(), streamMax: defaultStreamMaxLen}
}

// NewBusWithMaxLen creates a Bus with a custom stream cap.
func NewBusWithMaxLen(c *Client, maxLen int64) *Bus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Bus{rdb: c.Underlying(), streamMax: maxLen}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a Redis stream using XADD with an
// approximate MAXLEN for automatic trimming.
func (b *Bus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.streamMax,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventBus = (*Bus)(nil)
