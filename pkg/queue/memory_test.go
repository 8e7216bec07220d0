package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/pkg/logger"
)

type payload struct {
	N int `json:"n"`
}

type countingJob struct {
	mu    sync.Mutex
	seen  []int
	fail  atomic.Int32
	block chan struct{}
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "count" }

func (j *countingJob) Handle(_ context.Context, p interface{}) error {
	if j.block != nil {
		<-j.block
	}
	v, err := ParsePayload[payload](p)
	if err != nil {
		return err
	}
	if j.fail.Load() > 0 {
		j.fail.Add(-1)
		return errors.New("boom")
	}
	j.mu.Lock()
	j.seen = append(j.seen, v.N)
	j.mu.Unlock()
	return nil
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.seen)
}

type eventLog struct {
	mu     sync.Mutex
	events map[string]int
}

func (e *eventLog) RecordQueue(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		e.events = map[string]int{}
	}
	e.events[ev]++
}

func (e *eventLog) get(ev string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[ev]
}

func TestMemoryQueue_ProcessesAndDrainsOnStop(t *testing.T) {
	job := &countingJob{}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2, QueueSize: 16})
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
	assert.Equal(t, 10, job.count())

	assert.ErrorIs(t, q.Enqueue(context.Background(), "count", payload{}), ErrNotRunning)
}

func TestMemoryQueue_DropsWhenFull(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}
	events := &eventLog{}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 1}, WithMemoryObserver(events))
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	// first is taken by the blocked worker, second fills the buffer
	require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: 1}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: 2}))

	err := q.Enqueue(context.Background(), "count", payload{N: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, events.get(EventDropped))

	close(job.block)
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, 2, job.count())
}

func TestMemoryQueue_RetryThenDeadLetter(t *testing.T) {
	job := &countingJob{}
	job.fail.Store(10)
	events := &eventLog{}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 4, RetryLimit: 2, RetryDelay: time.Millisecond}, WithMemoryObserver(events))
	q.RegisterJob(job)
	require.NoError(t, q.Start())

	require.NoError(t, q.Enqueue(context.Background(), "count", payload{N: 1}))
	require.Eventually(t, func() bool { return events.get(EventDead) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, events.get(EventFailed))
	assert.Equal(t, 2, events.get(EventRetried))

	require.NoError(t, q.Stop(context.Background()))
}

func TestMemoryQueue_UnknownType(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), nil)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	assert.Error(t, q.Enqueue(context.Background(), "nope", nil))
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[payload](map[string]interface{}{"n": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, p.N)

	p, err = ParsePayload[payload]([]byte(`{}`))
	assert.Error(t, err)
	assert.Nil(t, p)
}
