package domain

import "time"

// LedgerStats is the aggregate session statistics snapshot served by the
// reporting surface.
type LedgerStats struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	DailyPnL        float64 `json:"daily_pnl"`
	AverageWin      float64 `json:"average_win"`
	AverageLoss     float64 `json:"average_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	OpenPositions   int     `json:"open_positions"`
	PendingOrders   int     `json:"pending_orders"`
	SessionDuration string  `json:"session_duration"`
}

// PositionSummary is one entry of the open-position report.
type PositionSummary struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	AgeSeconds float64   `json:"age_seconds"`
}

// ControllerStatus is a point-in-time snapshot of one symbol's scalp
// controller.
type ControllerStatus struct {
	Symbol        string  `json:"symbol"`
	State         string  `json:"state"`
	Quantity      float64 `json:"quantity"`
	EntryPrice    float64 `json:"entry_price"`
	LastPrice     float64 `json:"last_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TradesWon     int     `json:"trades_won"`
	TradesLost    int     `json:"trades_lost"`
	WinRate       float64 `json:"win_rate"`
	LastOrderID   string  `json:"last_order_id,omitempty"`
}
