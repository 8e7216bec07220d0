package usecase

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ModelArena/internal/domain/models"
	"ModelArena/pkg/util"
)

const (
	statusPriceWindow   = 100
	leaderSignalWindow  = 30
	detailSignalWindow  = 50
	detailTradeWindow   = 50
	seriesTradeWindow   = 100
	defaultTradesWindow = 50
)

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func tail[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// color returns the model colour or the palette entry for index i.
func color(m *models.Model, i int) string {
	if m.Color != "" {
		return m.Color
	}
	return FighterColors[i%len(FighterColors)]
}

// lastPrice returns the newest price or 0. Caller holds a.mu.
func (a *Arena) lastPrice() (float64, bool) {
	if len(a.prices) == 0 {
		return 0, false
	}
	return a.prices[len(a.prices)-1], true
}

func (a *Arena) Status() models.ArenaStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := models.ArenaStatus{
		Running:      a.running,
		TickCount:    a.tickCount,
		FighterCount: len(a.fighters),
		PriceHistory: tail(a.prices, statusPriceWindow),
	}
	if p, ok := a.lastPrice(); ok {
		st.CurrentPrice = &p
	}
	if !a.startedAt.IsZero() {
		t := a.startedAt
		st.StartedAt = &t
	}
	return st
}

// Leaderboard ranks live fighters by mark-to-market value, highest first.
// Ties keep join order.
func (a *Arena) Leaderboard() []models.LeaderboardEntry {
	a.mu.RLock()
	price, _ := a.lastPrice()
	out := make([]models.LeaderboardEntry, 0, len(a.order))
	values := make([]float64, 0, len(a.order))
	for i, w := range a.order {
		f := a.fighters[w]
		value := f.value(price)
		pnl := value - a.cfg.StartingCash
		exposure := f.position * price
		if exposure < 0 {
			exposure = -exposure
		}
		values = append(values, value)
		out = append(out, models.LeaderboardEntry{
			Wallet:        f.wallet,
			Name:          f.model.Name,
			Color:         color(f.model, i),
			Value:         round(value, 2),
			PnL:           round(pnl, 2),
			PnLPct:        round(pnl/a.cfg.StartingCash*100, 2),
			Cash:          round(f.cash, 2),
			Position:      round(f.position, 6),
			TotalBuys:     f.buys,
			TotalSells:    f.sells,
			TotalHolds:    f.holds,
			LastSignal:    f.lastSignal,
			JoinedAt:      f.joinedAt,
			TradeCount:    len(f.trades),
			SignalHistory: tail(f.signals, leaderSignalWindow),
			IsShort:       f.position < 0,
			Exposure:      round(exposure, 2),
		})
	}
	a.mu.RUnlock()

	// rank on exact values; rounding can tie fighters that differ
	sort.Stable(byValue{entries: out, values: values})
	return out
}

type byValue struct {
	entries []models.LeaderboardEntry
	values  []float64
}

func (b byValue) Len() int           { return len(b.entries) }
func (b byValue) Less(i, j int) bool { return b.values[i] > b.values[j] }
func (b byValue) Swap(i, j int) {
	b.entries[i], b.entries[j] = b.entries[j], b.entries[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}

// FighterDetail returns unrounded figures for one fighter.
func (a *Arena) FighterDetail(wallet string) (models.FighterDetail, bool) {
	wallet = util.NormalizeWallet(wallet)

	a.mu.RLock()
	defer a.mu.RUnlock()

	f, ok := a.fighters[wallet]
	if !ok {
		return models.FighterDetail{}, false
	}
	idx := 0
	for i, w := range a.order {
		if w == wallet {
			idx = i
			break
		}
	}
	price, _ := a.lastPrice()
	return models.FighterDetail{
		Wallet:           f.wallet,
		Name:             f.model.Name,
		Color:            color(f.model, idx),
		Description:      f.model.Description,
		Cash:             f.cash,
		Position:         f.position,
		Value:            f.value(price),
		Signals:          tail(f.signals, detailSignalWindow),
		Trades:           tail(f.trades, detailTradeWindow),
		PortfolioHistory: tail(f.portfolio, -1),
		TotalBuys:        f.buys,
		TotalSells:       f.sells,
		TotalHolds:       f.holds,
	}, true
}

// RecentTrades returns up to limit trades, newest first.
func (a *Arena) RecentTrades(limit int) []models.Trade {
	if limit <= 0 {
		limit = defaultTradesWindow
	}
	a.mu.RLock()
	out := tail(a.trades, limit)
	a.mu.RUnlock()

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (a *Arena) PortfolioSeries() []models.PortfolioSeries {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.PortfolioSeries, 0, len(a.order))
	for i, w := range a.order {
		f := a.fighters[w]
		trades := tail(f.trades, seriesTradeWindow)
		marks := make([]models.TradeMark, len(trades))
		for k, t := range trades {
			marks[k] = models.TradeMark{Tick: t.Tick, Type: t.Type, Price: t.Price}
		}
		out = append(out, models.PortfolioSeries{
			Wallet:  f.wallet,
			Name:    f.model.Name,
			Color:   color(f.model, i),
			History: tail(f.portfolio, -1),
			Trades:  marks,
		})
	}
	return out
}

// Uptime reports how long the arena has been running, zero when stopped.
func (a *Arena) Uptime() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.running {
		return 0
	}
	return a.now().Sub(a.startedAt)
}
