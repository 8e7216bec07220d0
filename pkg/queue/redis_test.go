package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/pkg/logger"
)

func newRedisQueue(t *testing.T, cfg *QueueConfig, opts ...RedisQueueOption) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(logger.Nop(), cfg, client, append([]RedisQueueOption{WithKeyPrefix("test:queue")}, opts...)...), srv
}

func TestRedisQueue_ProcessesJSONPayloads(t *testing.T) {
	job := &countingJob{}
	q, _ := newRedisQueue(t, &QueueConfig{Workers: 1, QueueSize: 16})
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: i}))
	}
	require.Eventually(t, func() bool { return job.count() == 3 }, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	assert.ErrorIs(t, q.Enqueue(context.Background(), "count", payload{N: 9}), ErrNotRunning)
}

func TestRedisQueue_FailedMessageGoesToDeadLetter(t *testing.T) {
	job := &countingJob{}
	job.fail.Store(1)
	events := &eventLog{}
	q, srv := newRedisQueue(t, &QueueConfig{Workers: 1, QueueSize: 16}, WithRedisObserver(events))
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})

	require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: 1}))
	require.Eventually(t, func() bool { return events.get(EventDead) == 1 }, 5*time.Second, 20*time.Millisecond)

	dlq, err := srv.List("test:queue:dlq")
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
	assert.Equal(t, 1, events.get(EventFailed))
	assert.Equal(t, 0, job.count())
}

func TestRedisQueue_DropsWhenFull(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}
	events := &eventLog{}
	q, srv := newRedisQueue(t, &QueueConfig{Workers: 1, QueueSize: 1}, WithRedisObserver(events))
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "count", payload{N: 1}))
	// wait for the worker to pick up the first message and block on it
	require.Eventually(t, func() bool {
		l, _ := srv.List("test:queue:messages")
		return len(l) == 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "count", payload{N: 2}))
	assert.ErrorIs(t, q.Enqueue(ctx, "count", payload{N: 3}), ErrQueueFull)
	assert.Equal(t, 1, events.get(EventDropped))

	close(job.block)
	require.Eventually(t, func() bool { return job.count() == 2 }, 5*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
}
