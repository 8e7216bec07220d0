package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/internal/domain/models"
	applogger "ModelArena/pkg/logger"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenSQLite(applogger.Nop(), ":memory:")
	require.NoError(t, err)
	s := NewGormStore(applogger.Nop(), db)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleModel(name string) *models.Model {
	return &models.Model{
		Name:        name,
		InputWindow: 1,
		Layers: []models.Layer{{
			Weights:    [][]float64{{0.5, -0.5, 0}},
			Bias:       []float64{0, 0, 1},
			Activation: "softmax",
		}},
	}
}

func TestGormStore_FighterLifecycle(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, w := range []string{"0xa", "0xb"} {
		require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{
			Wallet:   w,
			Model:    sampleModel("m-" + w),
			Name:     "m-" + w,
			Cash:     10000,
			Active:   true,
			JoinedAt: joined,
			Version:  1,
		}))
	}
	require.NoError(t, s.DeactivateFighter(ctx, "0xb", 2))

	recs, err := s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "0xa", recs[0].Wallet)
	assert.Equal(t, defaultFighterColor, recs[0].Color)
	assert.Equal(t, "m-0xa", recs[0].Model.Name)
	assert.Equal(t, []float64{0, 0, 1}, recs[0].Model.Layers[0].Bias)
	assert.True(t, recs[0].JoinedAt.Equal(joined))

	// re-join reactivates and resets
	require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{
		Wallet: "0xb", Model: sampleModel("again"), Name: "again", Cash: 10000, Active: true, JoinedAt: joined, Version: 3,
	}))
	recs, err = s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGormStore_SyncTickAndRestore(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{
		Wallet: "0xa", Model: sampleModel("a"), Name: "a", Cash: 10000, Active: true, JoinedAt: now, Version: 1,
	}))

	state, err := s.LoadArenaState(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.TickCount)

	snap := models.TickSnapshot{
		State: models.ArenaState{TickCount: 7, CurrentPrice: 612.5, Running: true, UpdatedAt: now, Version: 2},
		Fighters: []models.FighterRecord{{
			Wallet: "0xa", Model: sampleModel("a"), Name: "a", Cash: 9000, Position: 1.5, TotalBuys: 1,
			LastSignal: models.SignalBuy, Active: true, JoinedAt: now, Version: 2,
		}},
		Trades: []models.Trade{{
			ID: "t-1", Tick: 7, Wallet: "0xa", Model: "a", Type: models.TradeBuy,
			Price: 612.5, Amount: 1.5, Confidence: 0.9, Timestamp: now,
		}},
		Portfolios: []models.PortfolioSnapshot{{Wallet: "0xa", Tick: 7, Value: 9918.75}},
	}
	require.NoError(t, s.SyncTick(ctx, snap))
	// replaying the same tick must not duplicate trades
	require.NoError(t, s.SyncTick(ctx, snap))

	var trades int64
	require.NoError(t, s.db.Model(&tradeRow{}).Count(&trades).Error)
	assert.Equal(t, int64(1), trades)

	state, err = s.LoadArenaState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), state.TickCount)
	assert.Equal(t, 612.5, state.CurrentPrice)
	assert.True(t, state.Running)

	require.NoError(t, s.SaveArenaState(ctx, models.ArenaState{TickCount: 7, CurrentPrice: 612.5, Version: 3}))
	state, err = s.LoadArenaState(ctx)
	require.NoError(t, err)
	assert.False(t, state.Running)
	assert.Equal(t, int64(7), state.TickCount)

	recs, err := s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 9000.0, recs[0].Cash)
	assert.Equal(t, 1.5, recs[0].Position)
	assert.Equal(t, int64(1), recs[0].TotalBuys)
	assert.Equal(t, models.SignalBuy, recs[0].LastSignal)
	assert.Equal(t, "a", recs[0].Name)

	require.NoError(t, s.Health(ctx))
}

func TestGormStore_IgnoresStaleWrites(t *testing.T) {
	testStoreIgnoresStaleWrites(t, newSQLiteStore(t))
}
