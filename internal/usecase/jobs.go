package usecase

import (
	"context"
	"fmt"

	"ModelArena/internal/domain/models"
	"ModelArena/pkg/queue"
)

type upsertFighterJob struct{ m *Mirror }

func (j *upsertFighterJob) Name() string { return "UpsertFighter" }
func (j *upsertFighterJob) Type() string { return JobUpsertFighter }

func (j *upsertFighterJob) Handle(ctx context.Context, payload interface{}) error {
	rec, err := queue.ParsePayload[models.FighterRecord](payload)
	if err != nil {
		return err
	}
	return j.m.observe("upsert_fighter", func() error {
		if err := j.m.store.UpsertFighter(ctx, *rec); err != nil {
			return fmt.Errorf("upsert fighter %s: %w", rec.Wallet, err)
		}
		return nil
	})
}

type departure struct {
	Wallet  string `json:"wallet"`
	Version int64  `json:"version"`
}

type deactivateFighterJob struct{ m *Mirror }

func (j *deactivateFighterJob) Name() string { return "DeactivateFighter" }
func (j *deactivateFighterJob) Type() string { return JobDeactivateFighter }

func (j *deactivateFighterJob) Handle(ctx context.Context, payload interface{}) error {
	d, err := queue.ParsePayload[departure](payload)
	if err != nil {
		return err
	}
	return j.m.observe("deactivate_fighter", func() error {
		if err := j.m.store.DeactivateFighter(ctx, d.Wallet, d.Version); err != nil {
			return fmt.Errorf("deactivate fighter %s: %w", d.Wallet, err)
		}
		return nil
	})
}

type syncTickJob struct{ m *Mirror }

func (j *syncTickJob) Name() string { return "SyncTick" }
func (j *syncTickJob) Type() string { return JobSyncTick }

func (j *syncTickJob) Handle(ctx context.Context, payload interface{}) error {
	snap, err := queue.ParsePayload[models.TickSnapshot](payload)
	if err != nil {
		return err
	}
	return j.m.observe("sync_tick", func() error {
		if err := j.m.store.SyncTick(ctx, *snap); err != nil {
			return fmt.Errorf("sync tick %d: %w", snap.State.TickCount, err)
		}
		return nil
	})
}

type saveStateJob struct{ m *Mirror }

func (j *saveStateJob) Name() string { return "SaveArenaState" }
func (j *saveStateJob) Type() string { return JobSaveState }

func (j *saveStateJob) Handle(ctx context.Context, payload interface{}) error {
	st, err := queue.ParsePayload[models.ArenaState](payload)
	if err != nil {
		return err
	}
	return j.m.observe("save_state", func() error {
		if err := j.m.store.SaveArenaState(ctx, *st); err != nil {
			return fmt.Errorf("save arena state (running=%t): %w", st.Running, err)
		}
		return nil
	})
}

type publishTradesJob struct{ m *Mirror }

func (j *publishTradesJob) Name() string { return "PublishTrades" }
func (j *publishTradesJob) Type() string { return JobPublishTrades }

func (j *publishTradesJob) Handle(ctx context.Context, payload interface{}) error {
	trades, err := queue.ParsePayload[[]models.Trade](payload)
	if err != nil {
		return err
	}
	return j.m.observe("publish_trades", func() error {
		return j.m.pub.PublishTrades(ctx, *trades)
	})
}
