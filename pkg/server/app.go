package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	drepo "ModelArena/internal/domain/repository"
	"ModelArena/internal/usecase"
	"ModelArena/pkg/config"
	xhttp "ModelArena/pkg/http"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/queue"
)

// Runner is a background service that lives until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	arena      *usecase.Arena
	store      drepo.Store
	queue      queue.Queue
	httpServer *xhttp.Server
	runners    []Runner
	closers    []io.Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	arena *usecase.Arena,
	store drepo.Store,
	q queue.Queue,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger.With("app"),
		arena:      arena,
		store:      store,
		queue:      q,
		httpServer: httpServer,
	}
}

// AddRunner registers a background service started by Run.
func (a *App) AddRunner(r Runner) { a.runners = append(a.runners, r) }

// AddCloser registers a resource released at shutdown, after the queue has
// drained.
func (a *App) AddCloser(c io.Closer) { a.closers = append(a.closers, c) }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.queue.Start(); err != nil {
		return err
	}

	if a.cfg.Arena.RestoreOnStart {
		if err := a.arena.Restore(ctx); err != nil {
			a.logger.Warn("restore failed, starting empty", applogger.Error(err))
		}
	}

	for _, r := range a.runners {
		go func(r Runner) {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("background service stopped", applogger.Error(err))
			}
		}(r)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	a.arena.Start(ctx)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops ticking first so the final state reaches the queue, then
// stops HTTP, drains the queue and closes infrastructure.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.arena.Stop()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.queue.Stop(ctx); err != nil {
		a.logger.Warn("persistence queue did not drain", applogger.Error(err))
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
