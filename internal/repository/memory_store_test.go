package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Now()

	require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{Wallet: "0xb", Model: sampleModel("b"), Active: true, JoinedAt: t0.Add(time.Second), Version: 1}))
	require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{Wallet: "0xa", Model: sampleModel("a"), Active: true, JoinedAt: t0, Version: 2}))
	require.NoError(t, s.UpsertFighter(ctx, models.FighterRecord{Wallet: "0xc", Model: sampleModel("c"), Active: true, JoinedAt: t0, Version: 3}))
	require.NoError(t, s.DeactivateFighter(ctx, "0xc", 4))
	require.NoError(t, s.DeactivateFighter(ctx, "0xmissing", 5))

	require.NoError(t, s.SyncTick(ctx, models.TickSnapshot{
		State: models.ArenaState{TickCount: 3, CurrentPrice: 10, Running: true, Version: 6},
		Fighters: []models.FighterRecord{
			{Wallet: "0xa", Model: sampleModel("a"), Cash: 5, Position: -2, TotalSells: 1, LastSignal: models.SignalSell, Active: true, JoinedAt: t0, Version: 6},
			{Wallet: "0xb", Model: sampleModel("b"), Active: true, JoinedAt: t0.Add(time.Second), Version: 6},
		},
	}))
	require.NoError(t, s.SaveArenaState(ctx, models.ArenaState{TickCount: 3, CurrentPrice: 10, Version: 7}))

	recs, err := s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "0xa", recs[0].Wallet)
	assert.Equal(t, 5.0, recs[0].Cash)
	assert.Equal(t, -2.0, recs[0].Position)
	assert.Equal(t, defaultFighterColor, recs[0].Color)
	assert.NotNil(t, recs[0].Model)

	st, err := s.LoadArenaState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TickCount)
	assert.False(t, st.Running)
}

func TestMemoryStore_IgnoresStaleWrites(t *testing.T) {
	testStoreIgnoresStaleWrites(t, NewMemoryStore())
}

// testStoreIgnoresStaleWrites replays arena writes in the wrong order and
// checks that only the newest version of each row survives.
func testStoreIgnoresStaleWrites(t *testing.T, s drepo.Store) {
	t.Helper()
	ctx := context.Background()
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := func(wallet string, cash float64, version int64) models.FighterRecord {
		return models.FighterRecord{
			Wallet: wallet, Model: sampleModel(wallet), Name: wallet, Cash: cash,
			Active: true, JoinedAt: joined, Version: version,
		}
	}

	// leave lands before the join it follows
	require.NoError(t, s.DeactivateFighter(ctx, "0xgone", 20))
	require.NoError(t, s.UpsertFighter(ctx, rec("0xgone", 10000, 10)))

	// a late tick cannot roll a newer book back, nor revive a left wallet
	require.NoError(t, s.UpsertFighter(ctx, rec("0xkept", 10000, 10)))
	require.NoError(t, s.SyncTick(ctx, models.TickSnapshot{
		State:    models.ArenaState{TickCount: 2, CurrentPrice: 101, Running: true, UpdatedAt: joined, Version: 40},
		Fighters: []models.FighterRecord{rec("0xkept", 9000, 40)},
	}))
	require.NoError(t, s.SaveArenaState(ctx, models.ArenaState{TickCount: 2, CurrentPrice: 101, UpdatedAt: joined, Version: 50}))
	require.NoError(t, s.SyncTick(ctx, models.TickSnapshot{
		State:    models.ArenaState{TickCount: 1, CurrentPrice: 100, Running: true, UpdatedAt: joined, Version: 30},
		Fighters: []models.FighterRecord{rec("0xkept", 9500, 30), rec("0xgone", 9500, 30)},
	}))

	recs, err := s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "0xkept", recs[0].Wallet)
	assert.Equal(t, 9000.0, recs[0].Cash)
	assert.Equal(t, int64(40), recs[0].Version)

	st, err := s.LoadArenaState(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Equal(t, int64(2), st.TickCount)
	assert.Equal(t, 101.0, st.CurrentPrice)
	assert.Equal(t, int64(50), st.Version)

	// a later join of the same wallet wins over its tombstone
	require.NoError(t, s.UpsertFighter(ctx, rec("0xgone", 10000, 60)))
	recs, err = s.LoadActiveFighters(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
