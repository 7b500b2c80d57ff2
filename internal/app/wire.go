package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantdash/scalpbot/internal/broker/paper"
	redisbus "github.com/quantdash/scalpbot/internal/bus/redis"
	"github.com/quantdash/scalpbot/internal/config"
	"github.com/quantdash/scalpbot/internal/domain"
	"github.com/quantdash/scalpbot/internal/feed"
	"github.com/quantdash/scalpbot/internal/ledger"
	"github.com/quantdash/scalpbot/internal/scalper"
	"github.com/quantdash/scalpbot/internal/server"
	"github.com/quantdash/scalpbot/internal/server/handler"
	"github.com/quantdash/scalpbot/internal/server/ws"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Ledger      *ledger.Ledger
	Exec        domain.ExecutionClient
	Paper       *paper.Engine
	Controllers []*scalper.Controller
	Dispatcher  *feed.Dispatcher
	Stream      *feed.Stream
	Bus         domain.EventBus // nil when redis is disabled
	Hub         *ws.Hub         // nil when the server is disabled
	Server      *server.Server  // nil when the server is disabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	startedAt := time.Now().UTC()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger and paper broker ---
	deps.Ledger = ledger.New(ledger.Config{FeeRate: cfg.Trading.FeeRate}, logger)
	deps.Paper = paper.New(logger)
	deps.Exec = deps.Paper

	// --- Controllers, one per symbol, all sharing the ledger ---
	ctrlCfg := scalper.Config{
		LotSizeUSD:    cfg.Trading.LotSizeUSD,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		MinProfitPct:  cfg.Trading.MinProfitPct,
		MaxHoldTime:   time.Duration(cfg.Trading.MaxHoldSeconds) * time.Second,
		OrderTimeout:  time.Duration(cfg.Trading.OrderTimeoutSecs) * time.Second,
		WindowSize:    cfg.Trading.WindowSize,
	}
	for _, symbol := range cfg.Trading.Symbols {
		deps.Controllers = append(deps.Controllers,
			scalper.New(symbol, ctrlCfg, deps.Exec, deps.Ledger, logger))
	}

	// --- Feed dispatch ---
	// The paper broker taps ticks so resting limit orders fill as prices
	// move; its fills flow back through the dispatcher like broker events.
	deps.Dispatcher = feed.NewDispatcher(deps.Controllers, logger)
	deps.Dispatcher.Tap(deps.Paper.OnTick)
	deps.Paper.SetUpdateHandler(deps.Dispatcher.HandleOrderUpdate)

	deps.Stream = feed.NewStream(
		cfg.Feed.WsURL,
		cfg.Trading.Symbols,
		deps.Dispatcher.HandleTick,
		deps.Dispatcher.HandleOrderUpdate,
		logger,
	)
	closers = append(closers, deps.Stream.Close)

	// --- Redis event bus (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redisbus.New(ctx, redisbus.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Bus = redisbus.NewBus(redisClient)
	}

	// --- HTTP + WebSocket status surface (optional) ---
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(cfg.Mode, startedAt, logger)

		// Live ticks go to dashboard clients as well.
		deps.Dispatcher.Tap(func(tick domain.PriceTick) {
			deps.Hub.Publish("tick", tick)
		})

		sources := make([]handler.ControllerSource, 0, len(deps.Controllers))
		for _, c := range deps.Controllers {
			sources = append(sources, c)
		}
		deps.Server = server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
			},
			server.Handlers{
				Health:     handler.NewHealthHandler(startedAt, logger),
				Status:     handler.NewStatusHandler(cfg.Mode, startedAt, sources),
				Positions:  handler.NewPositionHandler(deps.Ledger, logger),
				Statistics: handler.NewStatisticsHandler(deps.Ledger),
				Trades:     handler.NewTradeHandler(deps.Ledger),
			},
			deps.Hub,
			logger,
		)
	}

	return deps, cleanup, nil
}
