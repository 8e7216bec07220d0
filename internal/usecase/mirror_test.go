package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/internal/domain/models"
	"ModelArena/internal/repository"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/queue"
)

type fakeStore struct {
	mu          sync.Mutex
	fighters    map[string]models.FighterRecord
	state       models.ArenaState
	trades      []models.Trade
	portfolios  []models.PortfolioSnapshot
	failUpserts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{fighters: map[string]models.FighterRecord{}}
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) UpsertFighter(_ context.Context, f models.FighterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts {
		return errors.New("db down")
	}
	s.putLocked(f)
	return nil
}

func (s *fakeStore) putLocked(f models.FighterRecord) {
	if cur, ok := s.fighters[f.Wallet]; ok && cur.Version > f.Version {
		return
	}
	s.fighters[f.Wallet] = f
}

func (s *fakeStore) DeactivateFighter(_ context.Context, wallet string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fighters[wallet]
	if f.Version > version {
		return nil
	}
	f.Wallet = wallet
	f.Active = false
	f.Version = version
	s.fighters[wallet] = f
	return nil
}

func (s *fakeStore) SyncTick(_ context.Context, snap models.TickSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.State.Version >= s.state.Version {
		s.state = snap.State
	}
	s.trades = append(s.trades, snap.Trades...)
	s.portfolios = append(s.portfolios, snap.Portfolios...)
	for _, f := range snap.Fighters {
		s.putLocked(f)
	}
	return nil
}

func (s *fakeStore) SaveArenaState(_ context.Context, st models.ArenaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Version >= s.state.Version {
		s.state = st
	}
	return nil
}

func (s *fakeStore) LoadActiveFighters(context.Context) ([]models.FighterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FighterRecord
	for _, f := range s.fighters {
		if f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) LoadArenaState(context.Context) (*models.ArenaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	return &st, nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	trades []models.Trade
}

func (p *fakePublisher) PublishTrades(_ context.Context, trades []models.Trade) error {
	p.mu.Lock()
	p.trades = append(p.trades, trades...)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestMirror_WritesBehindTicks(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1, QueueSize: 64})
	mirror := NewMirror(applogger.Nop(), q, store, pub, newFakeMetrics())
	require.NoError(t, q.Start())

	strategy := labelStrategy{"bull": models.SignalBuy, "flat": models.SignalHold}
	a := newTestArena(&seqFeed{prices: []float64{100, 102}}, strategy, WithPersister(mirror))
	require.NoError(t, a.Join("0xA", constModel("bull", []float64{1, 0, 0})))
	require.NoError(t, a.Join("0xB", constModel("flat", []float64{0, 0, 1})))
	require.NoError(t, a.Join("0xC", constModel("flat", []float64{0, 0, 1})))
	for i := 0; i < 2; i++ {
		_, err := a.Tick(context.Background())
		require.NoError(t, err)
	}
	require.NoError(t, a.Leave("0xc"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	assert.Equal(t, int64(2), store.state.TickCount)
	assert.Equal(t, 102.0, store.state.CurrentPrice)
	assert.Len(t, store.trades, 2)
	assert.Len(t, store.portfolios, 6)
	assert.Len(t, pub.trades, 2)

	active, err := store.LoadActiveFighters(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.False(t, store.fighters["0xc"].Active)

	d, _ := a.FighterDetail("0xa")
	assert.Equal(t, d.Cash, store.fighters["0xa"].Cash)
	assert.Equal(t, d.Position, store.fighters["0xa"].Position)
}

func TestMirror_StoreFailureIsNotReturned(t *testing.T) {
	store := newFakeStore()
	store.failUpserts = true
	m := newFakeMetrics()
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1, QueueSize: 8, RetryLimit: 0})
	mirror := NewMirror(applogger.Nop(), q, store, nil, m)
	require.NoError(t, q.Start())

	a := newTestArena(&seqFeed{prices: []float64{100}}, labelStrategy{}, WithPersister(mirror))
	require.NoError(t, a.Join("0x1", constModel("x", []float64{1, 0, 0})))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.errors["upsert_fighter"])
}

func TestMirror_EnqueueAfterStopIsCounted(t *testing.T) {
	m := newFakeMetrics()
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1})
	mirror := NewMirror(applogger.Nop(), q, newFakeStore(), nil, m)

	mirror.FighterLeft("0x1", 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.errors["persist_enqueue"])
}

// slowStore delays fighter upserts so that later jobs overtake them on a
// multi-worker queue.
type slowStore struct {
	*repository.MemoryStore
	delay time.Duration
}

func (s slowStore) UpsertFighter(ctx context.Context, f models.FighterRecord) error {
	time.Sleep(s.delay)
	return s.MemoryStore.UpsertFighter(ctx, f)
}

func (s slowStore) SyncTick(ctx context.Context, snap models.TickSnapshot) error {
	time.Sleep(s.delay)
	return s.MemoryStore.SyncTick(ctx, snap)
}

func TestMirror_LeaveOvertakingJoinStaysInactive(t *testing.T) {
	store := slowStore{MemoryStore: repository.NewMemoryStore(), delay: 50 * time.Millisecond}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 2, QueueSize: 16})
	mirror := NewMirror(applogger.Nop(), q, store, nil, newFakeMetrics())
	require.NoError(t, q.Start())

	a := newTestArena(&seqFeed{prices: []float64{100}}, labelStrategy{}, WithPersister(mirror))
	require.NoError(t, a.Join("0xabc", constModel("x", []float64{0, 0, 1})))
	require.NoError(t, a.Leave("0xabc"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	active, err := store.LoadActiveFighters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	b := newTestArena(&seqFeed{prices: []float64{100}}, labelStrategy{}, WithLoader(store))
	require.NoError(t, b.Restore(context.Background()))
	_, ok := b.FighterDetail("0xabc")
	assert.False(t, ok)
}

func TestMirror_LateTickDoesNotUndoShutdown(t *testing.T) {
	store := slowStore{MemoryStore: repository.NewMemoryStore(), delay: 50 * time.Millisecond}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 2, QueueSize: 16})
	mirror := NewMirror(applogger.Nop(), q, store, nil, newFakeMetrics())
	require.NoError(t, q.Start())

	cfg := DefaultArenaConfig()
	cfg.TickInterval = time.Hour
	a := newTestArena(&seqFeed{prices: []float64{100}}, labelStrategy{}, WithArenaConfig(cfg), WithPersister(mirror))
	a.Start(context.Background())
	require.Eventually(t, func() bool { return a.Status().TickCount == 1 }, time.Second, 5*time.Millisecond)
	a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	st, err := store.LoadArenaState(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Equal(t, int64(1), st.TickCount)
	assert.Equal(t, 100.0, st.CurrentPrice)
}
