package domain

import "context"

// ExecutionClient is the brokerage adapter boundary. Implementations submit
// and cancel orders and report account state; these are the only calls in
// the system that may block on the network, so all of them take a context.
//
// Order updates (fills, cancels, rejections) are delivered asynchronously
// through the order-event feed, not returned from SubmitOrder.
type ExecutionClient interface {
	// ListPositions returns the currently held positions.
	ListPositions(ctx context.Context) ([]Position, error)

	// ListOrders returns orders with the given status.
	ListOrders(ctx context.Context, status OrderStatus) ([]Order, error)

	// SubmitOrder places a new order and returns its accepted form.
	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// CancelOrder requests cancellation of an outstanding order.
	CancelOrder(ctx context.Context, orderID string) error

	// GetOrder fetches the current state of a single order.
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
