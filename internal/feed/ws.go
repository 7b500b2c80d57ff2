// Package feed consumes the market-data and order-event stream and routes
// messages to the per-symbol controllers. How ticks are sourced upstream is
// the stream server's concern; this side only decodes and dispatches.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantdash/scalpbot/internal/domain"
)

const (
	dialTimeout    = 15 * time.Second
	reconnectDelay = 2 * time.Second
)

// wsMessage is the envelope for everything the stream server sends.
type wsMessage struct {
	Type      string   `json:"type"` // "tick" or "order_update"
	Symbol    string   `json:"symbol,omitempty"`
	Price     float64  `json:"price,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"` // unix milliseconds
	Event     string   `json:"event,omitempty"`
	Order     *wsOrder `json:"order,omitempty"`
}

// wsOrder is the wire form of an order inside an order_update message.
type wsOrder struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"quantity"`
	FilledPrice    float64 `json:"filled_price"`
	FilledQuantity float64 `json:"filled_quantity"`
}

// subscribeMessage is sent once per connection to select symbols.
type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Stream connects to the market-data websocket, subscribes to the configured
// symbols, and invokes the handlers on each message. It reconnects with a
// fixed delay on disconnect. All handler invocations happen on the single
// read goroutine, so per-symbol delivery order matches arrival order.
type Stream struct {
	url       string
	symbols   []string
	onTick    domain.TickHandler
	onOrder   domain.OrderUpdateHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewStream creates a feed for the given symbols.
func NewStream(url string, symbols []string, onTick domain.TickHandler, onOrder domain.OrderUpdateHandler, logger *slog.Logger) *Stream {
	return &Stream{
		url:     url,
		symbols: symbols,
		onTick:  onTick,
		onOrder: onOrder,
		logger:  logger.With(slog.String("component", "feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and processes messages until ctx is cancelled or Close is
// called. Disconnects are retried indefinitely.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		s.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		if err := s.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("stream disconnected, reconnecting",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Stream) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		_ = conn.Close()
	}()

	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: s.symbols}); err != nil {
		return err
	}
	s.logger.Info("stream subscribed", slog.Int("symbols", len(s.symbols)))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(data)
	}
}

func (s *Stream) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("undecodable stream message", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case "tick":
		if s.onTick == nil || msg.Symbol == "" {
			return
		}
		ts := time.Now().UTC()
		if msg.Timestamp > 0 {
			ts = time.UnixMilli(msg.Timestamp).UTC()
		}
		s.onTick(domain.PriceTick{Symbol: msg.Symbol, Price: msg.Price, Timestamp: ts})

	case "order_update":
		if s.onOrder == nil || msg.Order == nil {
			return
		}
		s.onOrder(domain.OrderUpdate{
			Event: domain.OrderEvent(msg.Event),
			Order: domain.Order{
				ID:             msg.Order.ID,
				Symbol:         msg.Order.Symbol,
				Side:           domain.OrderSide(msg.Order.Side),
				Quantity:       msg.Order.Quantity,
				FilledPrice:    msg.Order.FilledPrice,
				FilledQuantity: msg.Order.FilledQuantity,
			},
		})

	default:
		// Heartbeats and acks are ignored.
	}
}

// Close stops the feed.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
