package feed

import (
	"log/slog"

	"github.com/quantdash/scalpbot/internal/domain"
	"github.com/quantdash/scalpbot/internal/scalper"
)

// Dispatcher fans stream events out to the per-symbol controllers. Ticks for
// a symbol reach its controller first and any registered taps second (the
// paper broker taps ticks to advance its fill simulation). Because the feed
// invokes the dispatcher from a single goroutine, fills for one symbol are
// applied in arrival order and a buy-then-sell pair is never reordered.
type Dispatcher struct {
	controllers map[string]*scalper.Controller
	taps        []domain.TickHandler
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given controllers.
func NewDispatcher(controllers []*scalper.Controller, logger *slog.Logger) *Dispatcher {
	bySymbol := make(map[string]*scalper.Controller, len(controllers))
	for _, c := range controllers {
		bySymbol[c.Symbol()] = c
	}
	return &Dispatcher{
		controllers: bySymbol,
		logger:      logger.With(slog.String("component", "dispatcher")),
	}
}

// Tap registers an additional tick consumer invoked after the controller.
func (d *Dispatcher) Tap(h domain.TickHandler) {
	d.taps = append(d.taps, h)
}

// HandleTick routes a price tick to the symbol's controller and then to the
// taps. Ticks for unknown symbols still reach the taps.
func (d *Dispatcher) HandleTick(tick domain.PriceTick) {
	if c, ok := d.controllers[tick.Symbol]; ok {
		c.UpdatePrice(tick.Price)
	}
	for _, tap := range d.taps {
		tap(tick)
	}
}

// HandleOrderUpdate routes an order event to the controller trading the
// order's symbol. Controllers additionally filter on their outstanding order
// id, so misrouted or stale events are harmless.
func (d *Dispatcher) HandleOrderUpdate(update domain.OrderUpdate) {
	c, ok := d.controllers[update.Order.Symbol]
	if !ok {
		d.logger.Warn("order update for unmanaged symbol",
			slog.String("symbol", update.Order.Symbol),
			slog.String("order_id", update.Order.ID),
		)
		return
	}
	c.OnOrderUpdate(update)
}
