package models

import "time"

// FighterRecord is the durable row for one fighter. Version orders writes:
// stores keep the row with the highest version, so a stale write that lands
// late is ignored.
type FighterRecord struct {
	Wallet     string
	Model      *Model
	Name       string
	Color      string
	Cash       float64
	Position   float64
	TotalBuys  int64
	TotalSells int64
	TotalHolds int64
	LastSignal SignalLabel
	Active     bool
	JoinedAt   time.Time
	Version    int64
}

// ArenaState is the singleton arena row, versioned like FighterRecord.
type ArenaState struct {
	TickCount    int64
	CurrentPrice float64
	Running      bool
	UpdatedAt    time.Time
	Version      int64
}

// PortfolioSnapshot is one fighter value sample at a tick.
type PortfolioSnapshot struct {
	Wallet string
	Tick   int64
	Value  float64
}

// TickSnapshot is everything written behind a single tick.
type TickSnapshot struct {
	State      ArenaState
	Fighters   []FighterRecord
	Trades     []Trade
	Portfolios []PortfolioSnapshot
}
