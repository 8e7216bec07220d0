package models

import "time"

type TradeType string

const (
	TradeBuy   TradeType = "buy"
	TradeSell  TradeType = "sell"
	TradeShort TradeType = "short"
	TradeCover TradeType = "cover"
)

// Trade is one executed fill. It is appended to the fighter's own log and to
// the arena-wide log.
type Trade struct {
	ID         string    `json:"id"`
	Tick       int64     `json:"tick"`
	Wallet     string    `json:"wallet"`
	Model      string    `json:"model"`
	Type       TradeType `json:"type"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"ts"`
}

// PortfolioPoint is the mark-to-market value of a fighter after a tick.
type PortfolioPoint struct {
	Tick      int64     `json:"tick"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

type LeaderboardEntry struct {
	Wallet        string        `json:"wallet"`
	Name          string        `json:"name"`
	Color         string        `json:"color"`
	Value         float64       `json:"value"`
	PnL           float64       `json:"pnl"`
	PnLPct        float64       `json:"pnlPct"`
	Cash          float64       `json:"cash"`
	Position      float64       `json:"position"`
	TotalBuys     int64         `json:"totalBuys"`
	TotalSells    int64         `json:"totalSells"`
	TotalHolds    int64         `json:"totalHolds"`
	LastSignal    SignalLabel   `json:"lastSignal,omitempty"`
	JoinedAt      time.Time     `json:"joinedAt"`
	TradeCount    int           `json:"tradeCount"`
	SignalHistory []SignalLabel `json:"signalHistory"`
	IsShort       bool          `json:"isShort"`
	Exposure      float64       `json:"exposure"`
}

type FighterDetail struct {
	Wallet           string           `json:"wallet"`
	Name             string           `json:"name"`
	Color            string           `json:"color"`
	Description      string           `json:"description,omitempty"`
	Cash             float64          `json:"cash"`
	Position         float64          `json:"position"`
	Value            float64          `json:"value"`
	Signals          []SignalLabel    `json:"signals"`
	Trades           []Trade          `json:"trades"`
	PortfolioHistory []PortfolioPoint `json:"portfolioHistory"`
	TotalBuys        int64            `json:"totalBuys"`
	TotalSells       int64            `json:"totalSells"`
	TotalHolds       int64            `json:"totalHolds"`
}

// TradeMark is the compact trade marker used by portfolio charts.
type TradeMark struct {
	Tick  int64     `json:"tick"`
	Type  TradeType `json:"type"`
	Price float64   `json:"price"`
}

type PortfolioSeries struct {
	Wallet  string           `json:"wallet"`
	Name    string           `json:"name"`
	Color   string           `json:"color"`
	History []PortfolioPoint `json:"history"`
	Trades  []TradeMark      `json:"trades"`
}

type ArenaStatus struct {
	Running      bool       `json:"running"`
	TickCount    int64      `json:"tickCount"`
	FighterCount int        `json:"fighterCount"`
	CurrentPrice *float64   `json:"currentPrice"`
	PriceHistory []float64  `json:"priceHistory"`
	StartedAt    *time.Time `json:"startedAt"`
}
