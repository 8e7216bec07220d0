package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	Registerer   prometheus.Registerer
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		RequiredAcks: 1,
		Compression:  "snappy",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithTopic sets the single topic every message is written to.
func WithTopic(topic string) ProducerOption {
	return func(c *ProducerConfig) { c.Topic = topic }
}

func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = compression }
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBatching sets size, byte and linger limits for writer batches.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithRegisterer registers producer metrics on reg instead of the default
// registry.
func WithRegisterer(reg prometheus.Registerer) ProducerOption {
	return func(c *ProducerConfig) { c.Registerer = reg }
}
