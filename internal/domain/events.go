package domain

import "time"

// OrderEvent classifies an asynchronous order notification from the
// execution boundary.
type OrderEvent string

const (
	OrderEventFill      OrderEvent = "fill"
	OrderEventCancelled OrderEvent = "cancelled"
	OrderEventRejected  OrderEvent = "rejected"
)

// OrderUpdate is delivered by the order-event feed when an outstanding order
// changes state.
type OrderUpdate struct {
	Event OrderEvent
	Order Order
}

// PriceTick is a single price observation for one symbol.
type PriceTick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// TickHandler receives price ticks from the market-data feed.
type TickHandler func(tick PriceTick)

// OrderUpdateHandler receives order lifecycle events from the order-event
// feed. For a given symbol, updates are delivered in arrival order.
type OrderUpdateHandler func(update OrderUpdate)
