package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRecorder(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewWorkerMetrics(registry)
	require.NoError(t, err)

	r := m.ForWorker("w1")
	r.RecordScheduled()
	r.RecordScheduled()
	r.RecordRejected(directionRequest)
	r.RecordRejected(directionResponse)
	r.RecordRejected(directionResponse)
	r.RecordProtocolError(directionResponse)
	r.RecordWork(workOK, 2*time.Millisecond)
	r.RecordWork(workError, time.Millisecond)
	r.RecordWork(workPanic, time.Millisecond)
	r.RecordDelivered()
	r.SetRunning(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.scheduled.WithLabelValues("w1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rejected.WithLabelValues("w1", directionRequest)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.rejected.WithLabelValues("w1", directionResponse)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.protocolErrors.WithLabelValues("w1", directionResponse)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.protocolErrors.WithLabelValues("w1", directionRequest)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.work.WithLabelValues("w1", workOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.work.WithLabelValues("w1", workError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.work.WithLabelValues("w1", workPanic)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.delivered.WithLabelValues("w1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.running.WithLabelValues("w1")), 0)

	r.SetRunning(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.running.WithLabelValues("w1")), 0)
}

func TestWorkerRecordersAreIndependent(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewWorkerMetrics(registry)
	require.NoError(t, err)

	m.ForWorker("a").RecordScheduled()
	m.ForWorker("b").RecordScheduled()
	m.ForWorker("b").RecordScheduled()

	assert.InDelta(t, 1, testutil.ToFloat64(m.scheduled.WithLabelValues("a")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.scheduled.WithLabelValues("b")), 0)
}

func TestWorkerRecorderDoesNotAllocate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewWorkerMetrics(registry)
	require.NoError(t, err)
	r := m.ForWorker("hot")

	allocs := testing.AllocsPerRun(100, func() {
		r.RecordScheduled()
		r.RecordRejected(directionRequest)
		r.RecordProtocolError(directionResponse)
		r.RecordDelivered()
	})
	assert.Zero(t, allocs)
}

func TestWorkerMetricsExposition(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewWorkerMetrics(registry)
	require.NoError(t, err)
	m.ForWorker("w1").RecordScheduled()

	count, err := testutil.GatherAndCount(registry, "lv2_worker_scheduled_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = NewWorkerMetrics(registry)
	require.Error(t, err, "registering twice on one registry must fail")
}
