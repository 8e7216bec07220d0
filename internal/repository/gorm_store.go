package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
	applogger "ModelArena/pkg/logger"
)

const defaultFighterColor = "#f0b90b"

type fighterRow struct {
	Wallet     string         `gorm:"primaryKey;type:varchar(128)"`
	Model      datatypes.JSON `gorm:"not null"`
	Name       string         `gorm:"type:varchar(100)"`
	Color      string         `gorm:"type:varchar(16)"`
	Cash       float64
	Position   float64
	TotalBuys  int64
	TotalSells int64
	TotalHolds int64
	LastSignal string `gorm:"type:varchar(8)"`
	Active     bool   `gorm:"index"`
	JoinedAt   time.Time
	UpdatedAt  time.Time
	Version    int64 `gorm:"not null;default:0"`
}

func (fighterRow) TableName() string { return "fighters" }

type tradeRow struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Tick       int64  `gorm:"index"`
	Wallet     string `gorm:"index;type:varchar(128)"`
	ModelName  string `gorm:"type:varchar(100)"`
	Type       string `gorm:"type:varchar(8)"`
	Price      float64
	Amount     float64
	Confidence float64
	CreatedAt  time.Time
}

func (tradeRow) TableName() string { return "trades" }

type arenaStateRow struct {
	ID           uint `gorm:"primaryKey;autoIncrement:false"`
	TickCount    int64
	CurrentPrice float64
	Running      bool
	UpdatedAt    time.Time
	Version      int64 `gorm:"not null;default:0"`
}

func (arenaStateRow) TableName() string { return "arena_state" }

type portfolioSnapshotRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Wallet    string `gorm:"index:idx_snapshot_wallet_tick;type:varchar(128)"`
	Tick      int64  `gorm:"index:idx_snapshot_wallet_tick"`
	Value     float64
	CreatedAt time.Time
}

func (portfolioSnapshotRow) TableName() string { return "portfolio_snapshots" }

const arenaStateID = 1

// newerOnly limits an ON CONFLICT update to rows whose stored version is not
// above the incoming one. Postgres and SQLite share the syntax.
func newerOnly(table string) clause.Where {
	return clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: table + ".version <= excluded.version"},
	}}
}

// tombstoneModel fills the non-null model column of a fighter row created by
// a deactivation.
var tombstoneModel = datatypes.JSON("null")

// GormStore persists the arena through gorm. It backs both the Postgres and
// the SQLite backends.
type GormStore struct {
	db     *gorm.DB
	logger *applogger.Logger
}

// OpenPostgres connects to Postgres.
func OpenPostgres(lgr *applogger.Logger, dsn string, maxOpen, maxIdle int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger(lgr)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	return db, nil
}

// OpenSQLite opens a SQLite database file. ":memory:" is accepted.
func OpenSQLite(lgr *applogger.Logger, path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(lgr)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func NewGormStore(lgr *applogger.Logger, db *gorm.DB) *GormStore {
	return &GormStore{db: db, logger: lgr.With("gorm_store")}
}

var _ drepo.Store = (*GormStore)(nil)

func (s *GormStore) Init(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&fighterRow{},
		&tradeRow{},
		&arenaStateRow{},
		&portfolioSnapshotRow{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertFighter(ctx context.Context, f models.FighterRecord) error {
	row, err := toFighterRow(f)
	if err != nil {
		return err
	}
	return upsertFighters(s.db.WithContext(ctx), []fighterRow{row})
}

func upsertFighters(db *gorm.DB, rows []fighterRow) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		UpdateAll: true,
		Where:     newerOnly("fighters"),
	}).Create(&rows).Error
}

// DeactivateFighter flips the stored row to inactive, or creates an inactive
// tombstone when the join has not been written yet.
func (s *GormStore) DeactivateFighter(ctx context.Context, wallet string, version int64) error {
	row := fighterRow{
		Wallet:    wallet,
		Model:     tombstoneModel,
		Color:     defaultFighterColor,
		Active:    false,
		UpdatedAt: time.Now().UTC(),
		Version:   version,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "version", "updated_at"}),
		Where:     newerOnly("fighters"),
	}).Create(&row).Error
}

// SyncTick writes the arena row, the tick's trades, fighter books and value
// samples in one transaction. Fighter rows in a snapshot are complete; rows
// without a model are skipped.
func (s *GormStore) SyncTick(ctx context.Context, snap models.TickSnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveState(tx, snap.State); err != nil {
			return err
		}

		if len(snap.Trades) > 0 {
			rows := make([]tradeRow, len(snap.Trades))
			for i, t := range snap.Trades {
				rows[i] = tradeRow{
					ID:         t.ID,
					Tick:       t.Tick,
					Wallet:     t.Wallet,
					ModelName:  t.Model,
					Type:       string(t.Type),
					Price:      t.Price,
					Amount:     t.Amount,
					Confidence: t.Confidence,
					CreatedAt:  t.Timestamp.UTC(),
				}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("trades: %w", err)
			}
		}

		fighters := make([]fighterRow, 0, len(snap.Fighters))
		for _, f := range snap.Fighters {
			if f.Model == nil {
				continue
			}
			row, err := toFighterRow(f)
			if err != nil {
				return err
			}
			fighters = append(fighters, row)
		}
		if err := upsertFighters(tx, fighters); err != nil {
			return fmt.Errorf("fighters: %w", err)
		}

		if len(snap.Portfolios) > 0 {
			rows := make([]portfolioSnapshotRow, len(snap.Portfolios))
			for i, p := range snap.Portfolios {
				rows[i] = portfolioSnapshotRow{
					Wallet:    p.Wallet,
					Tick:      p.Tick,
					Value:     p.Value,
					CreatedAt: snap.State.UpdatedAt.UTC(),
				}
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("portfolio snapshots: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) SaveArenaState(ctx context.Context, st models.ArenaState) error {
	return saveState(s.db.WithContext(ctx), st)
}

func saveState(db *gorm.DB, st models.ArenaState) error {
	at := st.UpdatedAt.UTC()
	if st.UpdatedAt.IsZero() {
		at = time.Now().UTC()
	}
	row := arenaStateRow{
		ID:           arenaStateID,
		TickCount:    st.TickCount,
		CurrentPrice: st.CurrentPrice,
		Running:      st.Running,
		UpdatedAt:    at,
		Version:      st.Version,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where:     newerOnly("arena_state"),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("arena state: %w", err)
	}
	return nil
}

func (s *GormStore) LoadActiveFighters(ctx context.Context) ([]models.FighterRecord, error) {
	var rows []fighterRow
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("joined_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load fighters: %w", err)
	}

	out := make([]models.FighterRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := fromFighterRow(r)
		if err != nil {
			s.logger.Warn("skipping fighter with unreadable model",
				applogger.String("wallet", r.Wallet),
				applogger.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) LoadArenaState(ctx context.Context) (*models.ArenaState, error) {
	var row arenaStateRow
	err := s.db.WithContext(ctx).First(&row, arenaStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ArenaState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load arena state: %w", err)
	}
	return &models.ArenaState{
		TickCount:    row.TickCount,
		CurrentPrice: row.CurrentPrice,
		Running:      row.Running,
		UpdatedAt:    row.UpdatedAt,
		Version:      row.Version,
	}, nil
}

func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toFighterRow(f models.FighterRecord) (fighterRow, error) {
	raw, err := json.Marshal(f.Model)
	if err != nil {
		return fighterRow{}, fmt.Errorf("encode model: %w", err)
	}
	color := f.Color
	if color == "" {
		color = defaultFighterColor
	}
	return fighterRow{
		Wallet:     f.Wallet,
		Model:      datatypes.JSON(raw),
		Name:       f.Name,
		Color:      color,
		Cash:       f.Cash,
		Position:   f.Position,
		TotalBuys:  f.TotalBuys,
		TotalSells: f.TotalSells,
		TotalHolds: f.TotalHolds,
		LastSignal: string(f.LastSignal),
		Active:     f.Active,
		JoinedAt:   f.JoinedAt.UTC(),
		UpdatedAt:  time.Now().UTC(),
		Version:    f.Version,
	}, nil
}

func fromFighterRow(r fighterRow) (models.FighterRecord, error) {
	var m models.Model
	if err := json.Unmarshal(r.Model, &m); err != nil {
		return models.FighterRecord{}, fmt.Errorf("decode model: %w", err)
	}
	return models.FighterRecord{
		Wallet:     r.Wallet,
		Model:      &m,
		Name:       r.Name,
		Color:      r.Color,
		Cash:       r.Cash,
		Position:   r.Position,
		TotalBuys:  r.TotalBuys,
		TotalSells: r.TotalSells,
		TotalHolds: r.TotalHolds,
		LastSignal: models.SignalLabel(r.LastSignal),
		Active:     r.Active,
		JoinedAt:   r.JoinedAt,
		Version:    r.Version,
	}, nil
}
