package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ModelArena/pkg/logger"
)

// MemoryQueue is an in-process bounded queue. Messages are lost on restart;
// dead letters are logged.
type MemoryQueue struct {
	logger    *logger.Logger
	config    QueueConfig
	observer  Observer
	jobs      map[string]Job
	ch        chan Message
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// MemoryQueueOption configures MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithMemoryObserver sets the event observer.
func WithMemoryObserver(o Observer) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if o != nil {
			q.observer = o
		}
	}
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig, opts ...MemoryQueueOption) *MemoryQueue {
	cfg := QueueConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		logger:   lgr,
		config:   cfg,
		observer: nopObserver{},
		jobs:     make(map[string]Job),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob registers a single job.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	q.ch = make(chan Message, q.config.QueueSize)

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(q.ch)
	}
	q.logger.Info("memory queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("size", q.config.QueueSize))
	return nil
}

// Stop closes the queue to new messages and waits for the buffered ones to
// drain. In-flight handlers are cancelled when ctx expires.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("memory queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	}
}

// Enqueue never blocks. A full buffer drops the message and returns
// ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	return q.push(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
}

func (q *MemoryQueue) push(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrNotRunning
	}
	if _, ok := q.jobs[msg.Type]; !ok {
		return fmt.Errorf("no job registered for type: %s", msg.Type)
	}

	select {
	case q.ch <- msg:
		q.observer.RecordQueue(EventEnqueued)
		return nil
	default:
		q.observer.RecordQueue(EventDropped)
		q.logger.Warn("queue full, message dropped",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type))
		return ErrQueueFull
	}
}

func (q *MemoryQueue) worker(ch <-chan Message) {
	defer q.wg.Done()
	for msg := range ch {
		q.process(msg)
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		return
	}
	q.observer.RecordQueue(EventFailed)
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		return
	}

	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts < q.config.RetryLimit {
		msg.Attempts++
		q.observer.RecordQueue(EventRetried)
		time.AfterFunc(q.config.RetryDelay, func() {
			if err := q.push(msg); err != nil {
				q.deadLetter(msg, err)
			}
		})
		return
	}
	q.deadLetter(msg, err)
}

func (q *MemoryQueue) deadLetter(msg Message, err error) {
	q.observer.RecordQueue(EventDead)
	q.logger.Error("message dead-lettered",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempts", msg.Attempts),
		logger.Error(err))
}
