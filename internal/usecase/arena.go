package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
	"ModelArena/internal/domain/service"
	"ModelArena/internal/services/inference"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/util"
)

var (
	ErrArenaFull     = errors.New("arena is full")
	ErrNotInArena    = errors.New("not in arena")
	ErrInvalidModel  = errors.New("invalid model")
	ErrInvalidWallet = errors.New("invalid wallet")
)

// TickOutcome reports what a call to Tick did.
type TickOutcome string

const (
	TickCompleted TickOutcome = "completed"
	TickSkipped   TickOutcome = "skipped" // no usable price
	TickBusy      TickOutcome = "busy"    // another tick was in flight
)

// TickResult summarises one tick.
type TickResult struct {
	Outcome  TickOutcome
	Tick     int64
	Price    float64
	Fighters int
	Trades   int
}

// Persister receives arena changes for write-behind storage. Implementations
// must not block. Every change carries a version taken under the arena lock,
// so later changes always have higher versions whatever order they are
// delivered in.
type Persister interface {
	FighterJoined(rec models.FighterRecord)
	FighterLeft(wallet string, version int64)
	TickCompleted(snap models.TickSnapshot)
	ArenaRunning(state models.ArenaState)
}

// Loader is the read side of a store used by Restore.
type Loader interface {
	LoadActiveFighters(ctx context.Context) ([]models.FighterRecord, error)
	LoadArenaState(ctx context.Context) (*models.ArenaState, error)
}

// FighterColors is the display palette used when a model has no colour.
var FighterColors = [...]string{
	"#00bcd4", "#ec4899", "#8b5cf6", "#10b981", "#f97316", "#06b6d4",
	"#a855f7", "#14b8a6", "#f43f5e", "#6366f1", "#84cc16", "#fb923c",
}

// ArenaConfig holds the arena's tunables.
type ArenaConfig struct {
	TickInterval    time.Duration
	MaxFighters     int
	StartingCash    float64
	TradeFraction   float64
	MinCash         float64
	Dust            float64
	PriceHistoryCap int
	TradeLogCap     int
	FighterTradeCap int
	PortfolioCap    int
	SignalCap       int
}

func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		TickInterval:    10 * time.Second,
		MaxFighters:     50,
		StartingCash:    10000,
		TradeFraction:   0.10,
		MinCash:         1,
		Dust:            0.0001,
		PriceHistoryCap: 200,
		TradeLogCap:     500,
		FighterTradeCap: 500,
		PortfolioCap:    1000,
		SignalCap:       100,
	}
}

type fighter struct {
	wallet     string
	model      *models.Model
	cash       float64
	position   float64
	buys       int64
	sells      int64
	holds      int64
	lastSignal models.SignalLabel
	joinedAt   time.Time
	signals    []models.SignalLabel
	trades     []models.Trade
	portfolio  []models.PortfolioPoint
}

func (f *fighter) value(price float64) float64 {
	return f.cash + f.position*price
}

func (f *fighter) record(active bool) models.FighterRecord {
	return models.FighterRecord{
		Wallet:     f.wallet,
		Model:      f.model,
		Name:       f.model.Name,
		Color:      f.model.Color,
		Cash:       f.cash,
		Position:   f.position,
		TotalBuys:  f.buys,
		TotalSells: f.sells,
		TotalHolds: f.holds,
		LastSignal: f.lastSignal,
		Active:     active,
		JoinedAt:   f.joinedAt,
	}
}

// Arena runs fighters in lock-step against a shared price feed.
type Arena struct {
	cfg      ArenaConfig
	policy   ExecutionPolicy
	feed     drepo.PriceFeed
	strategy service.Strategy
	metrics  drepo.Metrics
	persist  Persister
	loader   Loader
	namer    *inference.Namer
	logger   *applogger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	fighters  map[string]*fighter
	order     []string
	prices    []float64
	trades    []models.Trade
	tickCount int64
	running   bool
	startedAt time.Time
	version   int64

	busy atomic.Bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type ArenaOption func(*Arena)

func WithArenaConfig(cfg ArenaConfig) ArenaOption {
	return func(a *Arena) { a.cfg = cfg }
}

func WithPersister(p Persister) ArenaOption {
	return func(a *Arena) {
		if p != nil {
			a.persist = p
		}
	}
}

func WithLoader(l Loader) ArenaOption {
	return func(a *Arena) { a.loader = l }
}

func WithClock(now func() time.Time) ArenaOption {
	return func(a *Arena) { a.now = now }
}

// NewArena creates an idle arena. Call Start to begin ticking.
func NewArena(
	lgr *applogger.Logger,
	feed drepo.PriceFeed,
	strategy service.Strategy,
	metrics drepo.Metrics,
	opts ...ArenaOption,
) *Arena {
	a := &Arena{
		cfg:      DefaultArenaConfig(),
		feed:     feed,
		strategy: strategy,
		metrics:  metrics,
		persist:  nopPersister{},
		namer:    &inference.Namer{},
		logger:   lgr.With("arena"),
		now:      time.Now,
		fighters: make(map[string]*fighter),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.policy = ExecutionPolicy{Fraction: a.cfg.TradeFraction, MinCash: a.cfg.MinCash, Dust: a.cfg.Dust}
	return a
}

// Join validates model and (re)enters wallet with a fresh book. Re-joining
// keeps the wallet's place in the ordering and resets its state.
func (a *Arena) Join(wallet string, model *models.Model) error {
	wallet = util.NormalizeWallet(wallet)
	if wallet == "" {
		return ErrInvalidWallet
	}

	a.mu.RLock()
	_, exists := a.fighters[wallet]
	full := len(a.fighters) >= a.cfg.MaxFighters
	a.mu.RUnlock()
	if full && !exists {
		return ErrArenaFull
	}

	if err := inference.ValidateModel(model); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	m := model.Clone()
	if m.Name == "" {
		m.Name = a.namer.Next()
	}

	f := &fighter{
		wallet:   wallet,
		model:    m,
		cash:     a.cfg.StartingCash,
		joinedAt: a.now(),
	}

	a.mu.Lock()
	if _, ok := a.fighters[wallet]; !ok {
		if len(a.fighters) >= a.cfg.MaxFighters {
			a.mu.Unlock()
			return ErrArenaFull
		}
		a.order = append(a.order, wallet)
	}
	a.fighters[wallet] = f
	n := len(a.fighters)
	rec := f.record(true)
	rec.Version = a.nextVersion()
	a.mu.Unlock()

	a.metrics.RecordFighters(n)
	a.persist.FighterJoined(rec)
	a.logger.Info("fighter joined",
		applogger.String("wallet", util.ShortAddr(wallet)),
		applogger.String("model", m.Name),
		applogger.Int("fighters", n),
	)
	return nil
}

// Leave removes wallet from the live set.
func (a *Arena) Leave(wallet string) error {
	wallet = util.NormalizeWallet(wallet)

	a.mu.Lock()
	if _, ok := a.fighters[wallet]; !ok {
		a.mu.Unlock()
		return ErrNotInArena
	}
	delete(a.fighters, wallet)
	for i, w := range a.order {
		if w == wallet {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	n := len(a.fighters)
	version := a.nextVersion()
	a.mu.Unlock()

	a.metrics.RecordFighters(n)
	a.persist.FighterLeft(wallet, version)
	a.logger.Info("fighter left", applogger.String("wallet", util.ShortAddr(wallet)))
	return nil
}

// Tick advances every fighter by one step at the current price. A tick that
// starts while another is running returns TickBusy without doing anything.
func (a *Arena) Tick(ctx context.Context) (TickResult, error) {
	if !a.busy.CompareAndSwap(false, true) {
		a.metrics.RecordTick(string(TickBusy))
		return TickResult{Outcome: TickBusy}, nil
	}
	defer a.busy.Store(false)

	start := time.Now()
	price, err := a.feed.Price(ctx)
	if err == nil && (price <= 0 || math.IsNaN(price) || math.IsInf(price, 0)) {
		err = fmt.Errorf("%w: got %v", drepo.ErrPriceUnavailable, price)
	}
	if err != nil {
		a.metrics.RecordTick(string(TickSkipped))
		a.metrics.RecordError("price")
		a.logger.Warn("tick skipped", applogger.Error(err))
		return TickResult{Outcome: TickSkipped}, fmt.Errorf("fetch price: %w", err)
	}

	ts := a.now()

	a.mu.Lock()
	a.prices = appendCapped(a.prices, price, a.cfg.PriceHistoryCap)
	a.tickCount++
	tick := a.tickCount
	version := a.nextVersion()

	history := make([]float64, len(a.prices))
	copy(history, a.prices)

	snap := models.TickSnapshot{
		State: models.ArenaState{TickCount: tick, CurrentPrice: price, Running: a.running, UpdatedAt: ts, Version: version},
	}
	for _, w := range a.order {
		f := a.fighters[w]
		if tr := a.step(f, history, price, tick, ts); tr != nil {
			a.trades = appendCapped(a.trades, *tr, a.cfg.TradeLogCap)
			snap.Trades = append(snap.Trades, *tr)
		}
		rec := f.record(true)
		rec.Version = version
		snap.Fighters = append(snap.Fighters, rec)
		snap.Portfolios = append(snap.Portfolios, models.PortfolioSnapshot{
			Wallet: f.wallet,
			Tick:   tick,
			Value:  f.value(price),
		})
	}
	n := len(a.order)
	a.mu.Unlock()

	a.persist.TickCompleted(snap)

	a.metrics.RecordTick(string(TickCompleted))
	a.metrics.RecordTickDuration(time.Since(start))
	a.metrics.RecordLastPrice(price)
	for _, tr := range snap.Trades {
		a.metrics.RecordTrade(string(tr.Type))
	}

	a.logger.Debug("tick",
		applogger.Int64("tick", tick),
		applogger.Float64("price", price),
		applogger.Int("fighters", n),
		applogger.Int("trades", len(snap.Trades)),
	)
	return TickResult{Outcome: TickCompleted, Tick: tick, Price: price, Fighters: n, Trades: len(snap.Trades)}, nil
}

// step runs one fighter. Caller holds a.mu.
func (a *Arena) step(f *fighter, history []float64, price float64, tick int64, ts time.Time) *models.Trade {
	defer func() {
		f.portfolio = appendCapped(f.portfolio, models.PortfolioPoint{Tick: tick, Value: f.value(price), Timestamp: ts}, a.cfg.PortfolioCap)
	}()

	sig, err := a.decide(f, history)
	if err != nil {
		f.holds++
		a.metrics.RecordError("inference")
		a.logger.Warn("inference failed, holding",
			applogger.String("wallet", util.ShortAddr(f.wallet)),
			applogger.String("model", f.model.Name),
			applogger.Error(err),
		)
		return nil
	}

	f.lastSignal = sig.Label
	f.signals = appendCapped(f.signals, sig.Label, a.cfg.SignalCap)

	fill, ok := a.policy.Apply(sig.Label, f.cash, f.position, price)
	if !ok {
		f.holds++
		return nil
	}

	f.cash += fill.CashDelta
	f.position += fill.PositionDelta
	switch fill.Type {
	case models.TradeBuy, models.TradeCover:
		f.buys++
	default:
		f.sells++
	}

	tr := models.Trade{
		ID:         uuid.NewString(),
		Tick:       tick,
		Wallet:     f.wallet,
		Model:      f.model.Name,
		Type:       fill.Type,
		Price:      price,
		Amount:     fill.Amount,
		Confidence: sig.Confidence,
		Timestamp:  ts,
	}
	f.trades = appendCapped(f.trades, tr, a.cfg.FighterTradeCap)
	return &tr
}

func (a *Arena) decide(f *fighter, history []float64) (sig models.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.strategy.Decide(history, f.model)
}

// Start runs one tick immediately and then one per interval until Stop or
// ctx is cancelled. Calling Start on a running arena is a no-op.
func (a *Arena) Start(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	a.mu.Lock()
	a.running = true
	a.startedAt = a.now()
	state := a.stateLocked()
	a.mu.Unlock()
	a.persist.ArenaRunning(state)

	a.logger.Info("arena started", applogger.Duration("interval_ms", a.cfg.TickInterval))

	go a.loop(ctx, a.done)
}

func (a *Arena) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	_, _ = a.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = a.Tick(ctx)
		}
	}
}

// Stop cancels the ticker and waits for the in-flight tick to finish.
func (a *Arena) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	a.mu.Lock()
	a.running = false
	state := a.stateLocked()
	a.mu.Unlock()
	a.persist.ArenaRunning(state)

	a.logger.Info("arena stopped")
}

// Restore reloads active fighters and the tick counter from the loader.
// Histories start empty. Fighters whose stored model no longer validates are
// skipped.
func (a *Arena) Restore(ctx context.Context) error {
	if a.loader == nil {
		return nil
	}

	start := time.Now()
	recs, err := a.loader.LoadActiveFighters(ctx)
	if err != nil {
		a.metrics.RecordError("restore")
		return fmt.Errorf("load fighters: %w", err)
	}
	state, err := a.loader.LoadArenaState(ctx)
	if err != nil {
		a.metrics.RecordError("restore")
		return fmt.Errorf("load arena state: %w", err)
	}

	a.mu.Lock()
	restored := 0
	for _, r := range recs {
		wallet := util.NormalizeWallet(r.Wallet)
		if wallet == "" || r.Model == nil {
			continue
		}
		if err := inference.ValidateModel(r.Model); err != nil {
			a.logger.Warn("skipping stored fighter",
				applogger.String("wallet", util.ShortAddr(wallet)),
				applogger.Error(err),
			)
			continue
		}
		if _, ok := a.fighters[wallet]; !ok {
			if len(a.fighters) >= a.cfg.MaxFighters {
				break
			}
			a.order = append(a.order, wallet)
		}
		m := r.Model.Clone()
		if r.Name != "" {
			m.Name = r.Name
		}
		if r.Color != "" {
			m.Color = r.Color
		}
		a.fighters[wallet] = &fighter{
			wallet:     wallet,
			model:      m,
			cash:       r.Cash,
			position:   r.Position,
			buys:       r.TotalBuys,
			sells:      r.TotalSells,
			holds:      r.TotalHolds,
			lastSignal: r.LastSignal,
			joinedAt:   r.JoinedAt,
		}
		restored++
	}
	if state != nil {
		a.tickCount = state.TickCount
		a.version = max(a.version, state.Version)
	}
	for _, r := range recs {
		a.version = max(a.version, r.Version)
	}
	n := len(a.fighters)
	tick := a.tickCount
	a.mu.Unlock()

	a.metrics.RecordFighters(n)
	a.metrics.RecordLatency("restore", time.Since(start).Seconds())
	a.logger.Info("arena restored",
		applogger.Int("fighters", restored),
		applogger.Int64("tick", tick),
	)
	return nil
}

// nextVersion returns a version greater than any handed out before. It follows
// the wall clock so versions keep growing across restarts. Caller holds a.mu.
func (a *Arena) nextVersion() int64 {
	v := a.now().UnixNano()
	if v <= a.version {
		v = a.version + 1
	}
	a.version = v
	return v
}

// stateLocked snapshots the arena row under a fresh version. Caller holds a.mu.
func (a *Arena) stateLocked() models.ArenaState {
	st := models.ArenaState{
		TickCount: a.tickCount,
		Running:   a.running,
		UpdatedAt: a.now(),
		Version:   a.nextVersion(),
	}
	if n := len(a.prices); n > 0 {
		st.CurrentPrice = a.prices[n-1]
	}
	return st
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if limit > 0 && len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

type nopPersister struct{}

func (nopPersister) FighterJoined(models.FighterRecord) {}
func (nopPersister) FighterLeft(string, int64)          {}
func (nopPersister) TickCompleted(models.TickSnapshot)  {}
func (nopPersister) ArenaRunning(models.ArenaState)     {}
