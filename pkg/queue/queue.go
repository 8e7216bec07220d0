package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue has no room. The
	// message is dropped.
	ErrQueueFull = errors.New("queue full")
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("queue not running")
)

// Queue is a bounded background job queue with a fixed worker pool.
type Queue interface {
	RegisterJob(job Job)
	Start() error
	Stop(ctx context.Context) error
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one Type. Handle receives the payload as
// enqueued (memory) or as json.RawMessage (Redis); use ParsePayload.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// Observer receives queue lifecycle events.
type Observer interface {
	RecordQueue(event string)
}

type nopObserver struct{}

func (nopObserver) RecordQueue(string) {}

const (
	EventEnqueued = "enqueued"
	EventDropped  = "dropped"
	EventFailed   = "failed"
	EventRetried  = "retried"
	EventDead     = "dead"
)

type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int // retries after the first attempt; 0 dead-letters on first failure
	RetryDelay time.Duration
}

func (c *QueueConfig) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
}

// Message is one queued unit of work.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    interface{}     `json:"-"`
	RawPayload json.RawMessage `json:"payload,omitempty"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ParsePayload converts a job payload to T, whether it arrived as T, *T or
// encoded JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		if p == nil {
			return nil, fmt.Errorf("nil %T payload", p)
		}
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return decodePayload[T](p)
	case []byte:
		return decodePayload[T](p)
	case nil:
		return nil, errors.New("empty payload")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encode %T payload: %w", payload, err)
	}
	return decodePayload[T](b)
}

func decodePayload[T any](b []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode payload as %T: %w", out, err)
	}
	return &out, nil
}
