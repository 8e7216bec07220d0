package repository

import (
	"context"
	"errors"
	"time"

	"ModelArena/internal/domain/models"
)

// ErrPriceUnavailable is returned by a PriceFeed that has no usable price.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceFeed supplies the current asset price.
type PriceFeed interface {
	Price(ctx context.Context) (float64, error)
}

// Store persists arena state for restart recovery. Writes may arrive out of
// order; every fighter and arena-state write carries a version and a store
// applies it only when it is not older than what it holds. A deactivation of
// a wallet the store has never seen is kept as an inactive tombstone so that
// a late upsert of the same join cannot revive it.
type Store interface {
	Init(ctx context.Context) error // ensure tables
	UpsertFighter(ctx context.Context, f models.FighterRecord) error
	DeactivateFighter(ctx context.Context, wallet string, version int64) error
	SyncTick(ctx context.Context, snap models.TickSnapshot) error
	SaveArenaState(ctx context.Context, st models.ArenaState) error
	LoadActiveFighters(ctx context.Context) ([]models.FighterRecord, error)
	LoadArenaState(ctx context.Context) (*models.ArenaState, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// TradePublisher streams executed trades to downstream consumers.
type TradePublisher interface {
	PublishTrades(ctx context.Context, trades []models.Trade) error
	Close() error
}

// Metrics records arena observability signals.
type Metrics interface {
	RecordTick(outcome string)
	RecordTickDuration(d time.Duration)
	RecordTrade(kind string)
	RecordLastPrice(price float64)
	RecordFighters(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
