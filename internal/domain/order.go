package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates how the order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the order lifecycle. Filled and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a submitted (but not necessarily filled) instruction.
type Order struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	Type       OrderType
	LimitPrice float64 // required iff Type == OrderTypeLimit
	Status     OrderStatus
	CreatedAt  time.Time

	FilledPrice    float64
	FilledQuantity float64
	FilledAt       *time.Time
}

// OrderRequest carries the parameters for a new order submission to the
// execution boundary. ID is optional; when set, the boundary is expected to
// echo it back on every update so fills reconcile against the ledger's
// pending entry.
type OrderRequest struct {
	ID          string
	Symbol      string
	Side        OrderSide
	Quantity    float64
	Type        OrderType
	LimitPrice  float64
	TimeInForce string // "gtc" or "day"
}
