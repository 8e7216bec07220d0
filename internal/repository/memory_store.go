package repository

import (
	"context"
	"sort"
	"sync"

	"ModelArena/internal/domain/models"
	drepo "ModelArena/internal/domain/repository"
)

// MemoryStore keeps the persisted view in process. Nothing survives a restart;
// it is the default when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	fighters map[string]models.FighterRecord
	state    models.ArenaState
	trades   int
	samples  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fighters: make(map[string]models.FighterRecord)}
}

var _ drepo.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) UpsertFighter(_ context.Context, f models.FighterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(f)
	return nil
}

// putLocked keeps the newer of f and the stored row.
func (s *MemoryStore) putLocked(f models.FighterRecord) {
	if cur, ok := s.fighters[f.Wallet]; ok && cur.Version > f.Version {
		return
	}
	if f.Color == "" {
		f.Color = defaultFighterColor
	}
	s.fighters[f.Wallet] = f
}

func (s *MemoryStore) DeactivateFighter(_ context.Context, wallet string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fighters[wallet]
	if ok && f.Version > version {
		return nil
	}
	if !ok {
		f = models.FighterRecord{Wallet: wallet}
	}
	f.Active = false
	f.Version = version
	s.fighters[wallet] = f
	return nil
}

func (s *MemoryStore) SyncTick(_ context.Context, snap models.TickSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.State.Version >= s.state.Version {
		s.state = snap.State
	}
	for _, f := range snap.Fighters {
		s.putLocked(f)
	}
	s.trades += len(snap.Trades)
	s.samples += len(snap.Portfolios)
	return nil
}

func (s *MemoryStore) SaveArenaState(_ context.Context, st models.ArenaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Version >= s.state.Version {
		s.state = st
	}
	return nil
}

func (s *MemoryStore) LoadActiveFighters(context.Context) ([]models.FighterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FighterRecord, 0, len(s.fighters))
	for _, f := range s.fighters {
		if f.Active {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *MemoryStore) LoadArenaState(context.Context) (*models.ArenaState, error) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	return &st, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }
func (s *MemoryStore) Close() error                 { return nil }
