package domain

import "time"

// PositionState tracks where a position is in its open/close lifecycle.
type PositionState string

const (
	PositionStateOpen    PositionState = "open"
	PositionStateClosing PositionState = "closing"
	PositionStateClosed  PositionState = "closed"
)

// Position represents one brokerage lot, open or historical. Exit-related
// fields stay nil/zero until the position is closed; a closed position is
// never mutated again.
type Position struct {
	Symbol       string
	EntryPrice   float64
	Quantity     float64
	EntryTime    time.Time
	EntryOrderID string
	State        PositionState

	ExitPrice   *float64
	ExitTime    *time.Time
	ExitOrderID string

	RealizedPnL    float64
	RealizedPnLPct float64
	Fees           float64
}

// IsOpen reports whether the position still holds inventory.
func (p *Position) IsOpen() bool {
	return p.State == PositionStateOpen
}

// Age returns how long the position has been held, measured entry-to-exit for
// closed positions and entry-to-now otherwise.
func (p *Position) Age(now time.Time) time.Duration {
	if p.ExitTime != nil {
		return p.ExitTime.Sub(p.EntryTime)
	}
	return now.Sub(p.EntryTime)
}
