package domain

import "context"

// EventBus publishes trade and status events for external consumers (the
// dashboard websocket hub, alerting, ad-hoc monitoring). Implementations
// must tolerate slow or absent subscribers; publishing is fire-and-forget
// from the trading loop's point of view.
type EventBus interface {
	// Publish sends a payload on an ephemeral pub/sub channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// StreamAppend appends a payload to a capped, durable stream.
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
