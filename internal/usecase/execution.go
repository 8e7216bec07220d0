package usecase

import "ModelArena/internal/domain/models"

// ExecutionPolicy turns a signal into a fill against a fighter's book. Shorts
// are allowed: a sell with no long position borrows and sells, a buy while
// short covers.
type ExecutionPolicy struct {
	Fraction float64 // share of cash or position moved per trade
	MinCash  float64 // buys and shorts need strictly more cash than this
	Dust     float64 // positions within +-Dust count as flat
}

// Fill is the result of applying a signal.
type Fill struct {
	Type          models.TradeType
	Amount        float64 // units of the asset moved, always positive
	CashDelta     float64
	PositionDelta float64
}

// Apply returns the fill for signal at price, or false for a hold.
func (p ExecutionPolicy) Apply(signal models.SignalLabel, cash, position, price float64) (Fill, bool) {
	if price <= 0 {
		return Fill{}, false
	}
	switch signal {
	case models.SignalBuy:
		if cash <= p.MinCash {
			return Fill{}, false
		}
		spend := cash * p.Fraction
		amount := spend / price
		typ := models.TradeBuy
		if position < -p.Dust {
			typ = models.TradeCover
		}
		return Fill{Type: typ, Amount: amount, CashDelta: -spend, PositionDelta: amount}, true

	case models.SignalSell:
		if position > p.Dust {
			amount := position * p.Fraction
			return Fill{Type: models.TradeSell, Amount: amount, CashDelta: amount * price, PositionDelta: -amount}, true
		}
		if cash > p.MinCash {
			proceeds := cash * p.Fraction
			amount := proceeds / price
			return Fill{Type: models.TradeShort, Amount: amount, CashDelta: proceeds, PositionDelta: -amount}, true
		}
	}
	return Fill{}, false
}
