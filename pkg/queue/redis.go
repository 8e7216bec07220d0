package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ModelArena/pkg/logger"
)

// KEYS[1] ready list, ARGV[1] message, ARGV[2] capacity.
var enqueueScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('LPUSH', KEYS[1], ARGV[1])
return 1
`)

// KEYS[1] retry zset, KEYS[2] ready list, ARGV[1] now in ms, ARGV[2] batch.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('RPUSH', KEYS[2], m)
end
return #due
`)

const (
	popTimeout   = time.Second
	promoteEvery = time.Second
	promoteBatch = 100
)

// RedisQueue keeps messages in Redis lists so they survive a restart.
// A worker moves a message to a processing list while it runs; messages left
// there by a crash are requeued on Start. Retries wait in a sorted set scored
// by due time and exhausted messages land in a dead-letter list. One process
// per key prefix is assumed.
type RedisQueue struct {
	logger   *logger.Logger
	config   QueueConfig
	client   *redis.Client
	observer Observer
	prefix   string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces the queue keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

func WithRedisObserver(o Observer) RedisQueueOption {
	return func(r *RedisQueue) {
		if o != nil {
			r.observer = o
		}
	}
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	cfg := QueueConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.normalize()

	r := &RedisQueue{
		logger:   lgr.With("redis_queue"),
		config:   cfg,
		client:   client,
		observer: nopObserver{},
		prefix:   "arena:queue",
		jobs:     make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) readyKey() string      { return r.prefix + ":messages" }
func (r *RedisQueue) processingKey() string { return r.prefix + ":processing" }
func (r *RedisQueue) retryKey() string      { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string       { return r.prefix + ":dlq" }

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings Redis, requeues orphaned in-flight messages and starts the
// workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	n, err := r.requeueOrphans(ctx)
	if err != nil {
		return fmt.Errorf("requeue in-flight messages: %w", err)
	}
	if n > 0 {
		r.logger.Warn("requeued messages left in flight", logger.Int("count", n))
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.stop = make(chan struct{})
	r.running = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.promoter()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("prefix", r.prefix))
	return nil
}

// requeueOrphans moves the processing list back to the consuming end of the
// ready list, oldest first.
func (r *RedisQueue) requeueOrphans(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.processingKey(), r.readyKey(), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Stop waits for in-flight messages until ctx expires. Queued messages stay
// in Redis for the next Start.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stop)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		return fmt.Errorf("redis queue stop: %w", ctx.Err())
	}
}

// Enqueue appends a message unless the ready list already holds QueueSize
// messages, in which case it returns ErrQueueFull.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		RawPayload: raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ok, err := enqueueScript.Run(ctx, r.client, []string{r.readyKey()}, data, r.config.QueueSize).Int()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	if ok == 0 {
		r.observer.RecordQueue(EventDropped)
		r.logger.Warn("queue full, message dropped", logger.String("type", msgType))
		return ErrQueueFull
	}
	r.observer.RecordQueue(EventEnqueued)
	return nil
}

func (r *RedisQueue) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		raw, err := r.client.BLMove(r.ctx, r.readyKey(), r.processingKey(), "RIGHT", "LEFT", popTimeout).Result()
		switch {
		case err == nil:
			r.handle(raw)
		case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled):
		default:
			r.logger.Error("pop message", logger.Error(err))
			select {
			case <-r.stop:
				return
			case <-time.After(popTimeout):
			}
		}
	}
}

func (r *RedisQueue) handle(raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Error("undecodable message, dead-lettering", logger.Error(err))
		r.finish(raw, func(p redis.Pipeliner) { p.LPush(r.ctx, r.deadKey(), raw) })
		r.observer.RecordQueue(EventDead)
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.finish(raw, func(p redis.Pipeliner) { p.LPush(r.ctx, r.deadKey(), raw) })
		r.observer.RecordQueue(EventDead)
		return
	}

	err := job.Handle(r.ctx, msg.RawPayload)
	if err == nil {
		r.finish(raw, nil)
		return
	}

	r.observer.RecordQueue(EventFailed)
	if errors.Is(err, context.Canceled) {
		// stays in the processing list and is requeued on the next Start
		r.logger.Warn("message interrupted by shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}
	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.config.RetryLimit {
		r.finish(raw, func(p redis.Pipeliner) { p.LPush(r.ctx, r.deadKey(), raw) })
		r.observer.RecordQueue(EventDead)
		return
	}

	msg.Attempts++
	next, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode retry", logger.Error(err))
		return
	}
	due := time.Now().Add(r.config.RetryDelay).UnixMilli()
	r.finish(raw, func(p redis.Pipeliner) {
		p.ZAdd(r.ctx, r.retryKey(), redis.Z{Score: float64(due), Member: next})
	})
	r.observer.RecordQueue(EventRetried)
}

// finish removes raw from the processing list, together with then's commands
// in one transaction.
func (r *RedisQueue) finish(raw string, then func(redis.Pipeliner)) {
	_, err := r.client.TxPipelined(r.ctx, func(p redis.Pipeliner) error {
		p.LRem(r.ctx, r.processingKey(), 1, raw)
		if then != nil {
			then(p)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("settle message", logger.Error(err))
	}
}

func (r *RedisQueue) promoter() {
	defer r.wg.Done()
	t := time.NewTicker(promoteEvery)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
		}
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		err := promoteScript.Run(r.ctx, r.client, []string{r.retryKey(), r.readyKey()}, now, promoteBatch).Err()
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("promote retries", logger.Error(err))
		}
	}
}
