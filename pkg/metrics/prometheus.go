package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arena"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	tickDuration prometheus.Histogram
	tradesTotal  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	queueEvents  *prometheus.CounterVec
	lastPrice    prometheus.Gauge
	fighters     prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg. A nil reg
// means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Arena ticks by outcome (completed, skipped, busy)",
			},
			[]string{"outcome"},
		),
		tickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Wall time of completed arena ticks",
				Buckets:   prometheus.DefBuckets,
			},
		),
		tradesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Executed trades by type",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		queueEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_events_total",
				Help:      "Write-behind queue events (enqueued, dropped, failed, dead)",
			},
			[]string{"event"},
		),
		lastPrice: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_price",
				Help:      "Last price observed by the arena",
			},
		),
		fighters: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fighters",
				Help:      "Number of live fighters",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTick counts a tick attempt by outcome.
func (r *Recorder) RecordTick(outcome string) {
	r.ticksTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordTickDuration(d time.Duration) {
	r.tickDuration.Observe(d.Seconds())
}

// RecordTrade counts an executed trade.
func (r *Recorder) RecordTrade(kind string) {
	r.tradesTotal.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordQueue counts a queue lifecycle event.
func (r *Recorder) RecordQueue(event string) {
	r.queueEvents.WithLabelValues(event).Inc()
}

// RecordLastPrice records the last price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

func (r *Recorder) RecordFighters(n int) {
	r.fighters.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
