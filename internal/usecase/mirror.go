package usecase

import (
	"context"
	"errors"
	"time"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/queue"
)

const (
	JobUpsertFighter     = "upsert_fighter"
	JobDeactivateFighter = "deactivate_fighter"
	JobSyncTick          = "sync_tick"
	JobSaveState         = "save_state"
	JobPublishTrades     = "publish_trades"
)

const enqueueTimeout = 2 * time.Second

// Mirror hands arena changes to a background queue so that storage and
// streaming never slow down a tick. Enqueue failures are logged and counted.
// Jobs may run concurrently and be retried, so ordering is left to the
// versions the arena stamps on every change.
type Mirror struct {
	q       queue.Queue
	store   drepo.Store
	pub     drepo.TradePublisher
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewMirror registers its jobs on q. pub may be nil.
func NewMirror(
	lgr *applogger.Logger,
	q queue.Queue,
	store drepo.Store,
	pub drepo.TradePublisher,
	metrics drepo.Metrics,
) *Mirror {
	m := &Mirror{
		q:       q,
		store:   store,
		pub:     pub,
		metrics: metrics,
		logger:  lgr.With("mirror"),
	}

	q.RegisterJob(&upsertFighterJob{m: m})
	q.RegisterJob(&deactivateFighterJob{m: m})
	q.RegisterJob(&syncTickJob{m: m})
	q.RegisterJob(&saveStateJob{m: m})
	if pub != nil {
		q.RegisterJob(&publishTradesJob{m: m})
	}
	return m
}

func (m *Mirror) FighterJoined(rec models.FighterRecord) {
	m.enqueue(JobUpsertFighter, rec)
}

func (m *Mirror) FighterLeft(wallet string, version int64) {
	m.enqueue(JobDeactivateFighter, departure{Wallet: wallet, Version: version})
}

func (m *Mirror) TickCompleted(snap models.TickSnapshot) {
	m.enqueue(JobSyncTick, snap)
	if m.pub != nil && len(snap.Trades) > 0 {
		m.enqueue(JobPublishTrades, snap.Trades)
	}
}

func (m *Mirror) ArenaRunning(state models.ArenaState) {
	m.enqueue(JobSaveState, state)
}

func (m *Mirror) enqueue(msgType string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	if err := m.q.Enqueue(ctx, msgType, payload); err != nil {
		kind := "persist_enqueue"
		if errors.Is(err, queue.ErrQueueFull) {
			kind = "persist_dropped"
		}
		m.metrics.RecordError(kind)
		m.logger.Warn("persistence job not queued",
			applogger.String("type", msgType),
			applogger.Error(err),
		)
	}
}

// observe wraps a store call with latency and error accounting.
func (m *Mirror) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.metrics.RecordLatency(op, time.Since(start).Seconds())
	if err != nil {
		m.metrics.RecordError(op)
	}
	return err
}
