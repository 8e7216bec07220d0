package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordTick("completed")
	r.RecordTick("completed")
	r.RecordTick("skipped")
	r.RecordTrade("buy")
	r.RecordQueue("dropped")
	r.RecordError("store")
	r.RecordLastPrice(612.5)
	r.RecordFighters(3)
	r.RecordTickDuration(20 * time.Millisecond)
	r.RecordLatency("store.sync_tick", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ticksTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ticksTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesTotal.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.queueEvents.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))
	assert.Equal(t, 612.5, testutil.ToFloat64(r.lastPrice))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.fighters))
	assert.Equal(t, 1, testutil.CollectAndCount(r.tickDuration))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
