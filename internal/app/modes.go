package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantdash/scalpbot/internal/domain"
	"github.com/quantdash/scalpbot/internal/scalper"
)

const (
	// statusChannel carries periodic status snapshots over the event bus.
	statusChannel = "scalpbot:status"

	// tradesStream accumulates closed trades on the event bus stream.
	tradesStream = "scalpbot:trades"

	// statusInterval is how often status snapshots are published.
	statusInterval = 5 * time.Second
)

// TradeMode reconciles broker state, then runs the feed, the per-symbol
// controller step loops, and the shared reporting surfaces until the context
// is cancelled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("symbols", len(deps.Controllers)),
	)

	// Adopt any broker-side positions and orders before trading begins so a
	// restart cannot double-open a symbol.
	for _, c := range deps.Controllers {
		if err := c.Initialize(ctx); err != nil {
			a.logger.WarnContext(ctx, "controller initialization failed, starting flat",
				slog.String("symbol", c.Symbol()),
				slog.String("error", err.Error()),
			)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, c := range deps.Controllers {
		g.Go(func() error {
			return a.runControllerLoop(ctx, c)
		})
	}

	a.startShared(ctx, g, deps)

	return g.Wait()
}

// MonitorMode runs the feed and the reporting surfaces without submitting any
// orders. Controllers still receive ticks, so the dashboard shows live prices
// and signals, but the step loops that act on them are not started.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Int("symbols", len(deps.Controllers)),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startShared(ctx, g, deps)

	return g.Wait()
}

// runControllerLoop drives one controller's state machine at the configured
// step interval.
func (a *App) runControllerLoop(ctx context.Context, c *scalper.Controller) error {
	interval := a.cfg.Trading.StepInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RunStep(ctx)
		}
	}
}

// startShared launches the goroutines common to every mode: the market data
// stream, the ledger retention sweep, the status publisher, and the HTTP and
// WebSocket surfaces when enabled.
func (a *App) startShared(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Stream.Run(ctx)
	})

	g.Go(func() error {
		return a.runLedgerSweep(ctx, deps)
	})

	if deps.Bus != nil || deps.Hub != nil {
		g.Go(func() error {
			return a.runStatusPublisher(ctx, deps)
		})
	}

	if deps.Hub != nil {
		g.Go(func() error {
			return deps.Hub.Run(ctx)
		})
	}

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}
}

// runLedgerSweep periodically drops closed positions older than the retention
// window.
func (a *App) runLedgerSweep(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Ledger.CleanupInterval.Duration
	if interval <= 0 {
		interval = time.Hour
	}
	maxAge := time.Duration(a.cfg.Ledger.RetentionHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := deps.Ledger.CleanupOldPositions(maxAge); removed > 0 {
				a.logger.InfoContext(ctx, "ledger sweep removed closed positions",
					slog.Int("removed", removed),
				)
			}
		}
	}
}

// statusSnapshot is the envelope published on the status channel.
type statusSnapshot struct {
	Mode        string                    `json:"mode"`
	Timestamp   time.Time                 `json:"timestamp"`
	Statistics  domain.LedgerStats        `json:"statistics"`
	Controllers []domain.ControllerStatus `json:"controllers"`
}

// runStatusPublisher periodically pushes a status snapshot to the event bus
// and the WebSocket hub, and appends newly closed trades to the durable
// stream. Publish failures are logged and skipped; reporting never stops the
// trading loop.
func (a *App) runStatusPublisher(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	published := 0 // closed trades already appended to the stream

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := statusSnapshot{
				Mode:       a.cfg.Mode,
				Timestamp:  time.Now().UTC(),
				Statistics: deps.Ledger.Statistics(),
			}
			for _, c := range deps.Controllers {
				snap.Controllers = append(snap.Controllers, c.Status())
			}

			if deps.Hub != nil {
				deps.Hub.Publish("status", snap)
			}

			if deps.Bus != nil {
				if data, err := json.Marshal(snap); err == nil {
					if err := deps.Bus.Publish(ctx, statusChannel, data); err != nil {
						a.logger.WarnContext(ctx, "status publish failed",
							slog.String("error", err.Error()),
						)
					}
				}

				published = a.appendNewTrades(ctx, deps, published)
			}
		}
	}
}

// appendNewTrades pushes closed trades beyond the already-published count to
// the event bus stream and returns the new count.
func (a *App) appendNewTrades(ctx context.Context, deps *Dependencies, published int) int {
	closed := deps.Ledger.ClosedPositions()
	for ; published < len(closed); published++ {
		data, err := json.Marshal(closed[published])
		if err != nil {
			continue
		}
		if err := deps.Bus.StreamAppend(ctx, tradesStream, data); err != nil {
			a.logger.WarnContext(ctx, "trade stream append failed",
				slog.String("error", err.Error()),
			)
			return published
		}
		if deps.Hub != nil {
			deps.Hub.Publish("trade", closed[published])
		}
	}
	return published
}
