package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is a keyed payload. Values that are not []byte or string are JSON
// encoded.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer writes JSON messages to one topic.
type Producer struct {
	writer  messageWriter
	topic   string
	comp    string
	metrics *producerMetrics
}

// NewProducer creates a producer. Messages with the same key land on the same
// partition.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            parseCompression(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg), nil
}

func newProducer(w messageWriter, cfg *ProducerConfig) *Producer {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Producer{
		writer:  w,
		topic:   cfg.Topic,
		comp:    cfg.Compression,
		metrics: newProducerMetrics(reg),
	}
}

func (p *Producer) Topic() string { return p.topic }

// Publish writes messages as one batch.
func (p *Producer) Publish(ctx context.Context, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	msgs := make([]kafka.Message, 0, len(messages))
	var total int64
	for _, m := range messages {
		v, err := encode(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: m.Key, Value: v, Time: now})
		total += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observe(p.topic, p.comp, total, len(msgs), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	f := promauto.With(reg)
	return &producerMetrics{
		msgs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "kafka_producer",
			Name:      "messages_total",
			Help:      "Messages published to Kafka by result",
		}, []string{"topic", "compression", "result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "kafka_producer",
			Name:      "bytes_total",
			Help:      "Payload bytes published",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arena",
			Subsystem: "kafka_producer",
			Name:      "publish_seconds",
			Help:      "Publish latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.msgs.WithLabelValues(topic, comp, result).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
