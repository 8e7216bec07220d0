package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
	pkgch "ModelArena/pkg/clickhouse"
	applogger "ModelArena/pkg/logger"
)

// ReplacingMergeTree keeps the row with the highest version per key, so stale
// writes that land late lose on merge; reads use FINAL. A left fighter is a
// tombstone row with active = false.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS fighters (
		wallet      String,
		model       String,
		name        String,
		color       String,
		cash        Float64,
		position    Float64,
		total_buys  Int64,
		total_sells Int64,
		total_holds Int64,
		last_signal LowCardinality(String),
		active      Bool,
		joined_at   DateTime64(3, 'UTC'),
		updated_at  DateTime64(3, 'UTC'),
		version     UInt64
	) ENGINE = ReplacingMergeTree(version)
	ORDER BY wallet`,
	`CREATE TABLE IF NOT EXISTS trades (
		id         String,
		tick       Int64,
		wallet     String,
		model      String,
		type       LowCardinality(String),
		price      Float64,
		amount     Float64,
		confidence Float64,
		ts         DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree
	ORDER BY (tick, id)`,
	`CREATE TABLE IF NOT EXISTS arena_state (
		id            UInt8,
		tick_count    Int64,
		current_price Float64,
		running       Bool,
		updated_at    DateTime64(3, 'UTC'),
		version       UInt64
	) ENGINE = ReplacingMergeTree(version)
	ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		wallet String,
		tick   Int64,
		value  Float64,
		ts     DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (wallet, tick)`,
}

const (
	insertFighter  = `INSERT INTO fighters (wallet, model, name, color, cash, position, total_buys, total_sells, total_holds, last_signal, active, joined_at, updated_at, version)`
	insertTrade    = `INSERT INTO trades (id, tick, wallet, model, type, price, amount, confidence, ts)`
	insertState    = `INSERT INTO arena_state (id, tick_count, current_price, running, updated_at, version)`
	insertSnapshot = `INSERT INTO portfolio_snapshots (wallet, tick, value, ts)`

	selectFighters = `SELECT wallet, model, name, color, cash, position, total_buys, total_sells, total_holds, last_signal, active, joined_at, version
		FROM fighters FINAL`
	selectState = `SELECT tick_count, current_price, running, updated_at, version FROM arena_state FINAL WHERE id = ?`
)

// ClickHouseStore persists the arena in ClickHouse. Updates are written as new
// row versions.
type ClickHouseStore struct {
	ch     *pkgch.Client
	db     *sql.DB
	logger *applogger.Logger
}

func NewClickHouseStore(lgr *applogger.Logger, ch *pkgch.Client) *ClickHouseStore {
	return &ClickHouseStore{ch: ch, db: ch.DB(), logger: lgr.With("clickhouse_store")}
}

var _ drepo.Store = (*ClickHouseStore)(nil)

func (s *ClickHouseStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, clickhouseSchema); err != nil {
		return err
	}
	s.logger.Info("clickhouse schema ready", applogger.String("database", s.ch.Database()))
	return nil
}

func (s *ClickHouseStore) UpsertFighter(ctx context.Context, f models.FighterRecord) error {
	row, err := fighterValues(f, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.ch.Batch(ctx, insertFighter, [][]any{row})
}

// DeactivateFighter writes a tombstone version. It does not read the current
// row: merging by version already discards it if a newer join exists.
func (s *ClickHouseStore) DeactivateFighter(ctx context.Context, wallet string, version int64) error {
	now := time.Now().UTC()
	return s.ch.Batch(ctx, insertFighter, [][]any{{
		wallet, "null", "", defaultFighterColor, 0.0, 0.0,
		int64(0), int64(0), int64(0), "", false,
		time.Unix(0, 0).UTC(), now, uint64(version),
	}})
}

func (s *ClickHouseStore) SyncTick(ctx context.Context, snap models.TickSnapshot) error {
	at := snap.State.UpdatedAt.UTC()

	if err := s.SaveArenaState(ctx, snap.State); err != nil {
		return err
	}

	trades := make([][]any, 0, len(snap.Trades))
	for _, t := range snap.Trades {
		trades = append(trades, []any{
			t.ID, t.Tick, t.Wallet, t.Model, string(t.Type), t.Price, t.Amount, t.Confidence, t.Timestamp.UTC(),
		})
	}
	if err := s.ch.Batch(ctx, insertTrade, trades); err != nil {
		return fmt.Errorf("trades: %w", err)
	}

	fighters := make([][]any, 0, len(snap.Fighters))
	for _, f := range snap.Fighters {
		if f.Model == nil {
			continue
		}
		row, err := fighterValues(f, at)
		if err != nil {
			return err
		}
		fighters = append(fighters, row)
	}
	if err := s.ch.Batch(ctx, insertFighter, fighters); err != nil {
		return fmt.Errorf("fighters: %w", err)
	}

	samples := make([][]any, 0, len(snap.Portfolios))
	for _, p := range snap.Portfolios {
		samples = append(samples, []any{p.Wallet, p.Tick, p.Value, at})
	}
	if err := s.ch.Batch(ctx, insertSnapshot, samples); err != nil {
		return fmt.Errorf("portfolio snapshots: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) SaveArenaState(ctx context.Context, st models.ArenaState) error {
	at := st.UpdatedAt.UTC()
	if st.UpdatedAt.IsZero() {
		at = time.Now().UTC()
	}
	err := s.ch.Batch(ctx, insertState, [][]any{{
		uint8(arenaStateID), st.TickCount, st.CurrentPrice, st.Running, at, uint64(st.Version),
	}})
	if err != nil {
		return fmt.Errorf("arena state: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) LoadActiveFighters(ctx context.Context) ([]models.FighterRecord, error) {
	return s.queryFighters(ctx, " WHERE active ORDER BY joined_at")
}

func (s *ClickHouseStore) queryFighters(ctx context.Context, where string, args ...any) ([]models.FighterRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectFighters+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query fighters: %w", err)
	}
	defer rows.Close()

	var out []models.FighterRecord
	for rows.Next() {
		var (
			f       models.FighterRecord
			raw     string
			signal  string
			version uint64
		)
		if err := rows.Scan(&f.Wallet, &raw, &f.Name, &f.Color, &f.Cash, &f.Position,
			&f.TotalBuys, &f.TotalSells, &f.TotalHolds, &signal, &f.Active, &f.JoinedAt, &version); err != nil {
			return nil, fmt.Errorf("scan fighter: %w", err)
		}
		var m models.Model
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.logger.Warn("skipping fighter with unreadable model",
				applogger.String("wallet", f.Wallet),
				applogger.Error(err),
			)
			continue
		}
		f.Model = &m
		f.LastSignal = models.SignalLabel(signal)
		f.Version = int64(version)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) LoadArenaState(ctx context.Context) (*models.ArenaState, error) {
	var (
		st      models.ArenaState
		version uint64
	)
	err := s.db.QueryRowContext(ctx, selectState, uint8(arenaStateID)).
		Scan(&st.TickCount, &st.CurrentPrice, &st.Running, &st.UpdatedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ArenaState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load arena state: %w", err)
	}
	st.Version = int64(version)
	return &st, nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.ch.Close()
}

func fighterValues(f models.FighterRecord, at time.Time) ([]any, error) {
	raw, err := json.Marshal(f.Model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	color := f.Color
	if color == "" {
		color = defaultFighterColor
	}
	return []any{
		f.Wallet, string(raw), f.Name, color, f.Cash, f.Position,
		f.TotalBuys, f.TotalSells, f.TotalHolds, string(f.LastSignal), f.Active,
		f.JoinedAt.UTC(), at, uint64(f.Version),
	}, nil
}
