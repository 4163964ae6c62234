package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HostMetrics contains Prometheus metrics for the simulated plugin host.
type HostMetrics struct {
	registry *prometheus.Registry

	// Audio cycle metrics
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	overruns      *prometheus.CounterVec
	pumpErrors    *prometheus.CounterVec

	// Output recorder metrics
	recorderBytes   *prometheus.CounterVec
	recorderDropped *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewHostMetrics creates and registers new host metrics
func NewHostMetrics(registry *prometheus.Registry) (*HostMetrics, error) {
	m := &HostMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HostMetrics) initMetrics() {
	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "cycles_total",
			Help:      "Total number of audio cycles run",
		},
		[]string{"driver"},
	)

	m.cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in process and pump per audio cycle",
			Buckets:   prometheus.ExponentialBuckets(BucketStart10us, BucketFactor2, BucketCount12), // 10µs to ~20ms
		},
		[]string{"driver"},
	)

	m.overruns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "overruns_total",
			Help:      "Total number of cycles that took longer than one block period",
		},
		[]string{"driver"},
	)

	m.pumpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "pump_errors_total",
			Help:      "Total number of cycles whose response pump reported a protocol error",
		},
		[]string{"driver"},
	)

	m.recorderBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "recorder_bytes_total",
			Help:      "Total bytes of rendered audio handed to the output recorder",
		},
		[]string{"driver"},
	)

	m.recorderDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "host",
			Name:      "recorder_dropped_bytes_total",
			Help:      "Total bytes of rendered audio dropped because the recorder buffer was full",
		},
		[]string{"driver"},
	)

	m.collectors = []prometheus.Collector{
		m.cycles,
		m.cycleDuration,
		m.overruns,
		m.pumpErrors,
		m.recorderBytes,
		m.recorderDropped,
	}
}

// Describe implements the prometheus.Collector interface
func (m *HostMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *HostMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ForDriver returns a recorder with label children resolved for one driver.
func (m *HostMetrics) ForDriver(driver string) *HostRecorder {
	return &HostRecorder{
		cycles:          m.cycles.WithLabelValues(driver),
		cycleDuration:   m.cycleDuration.WithLabelValues(driver),
		overruns:        m.overruns.WithLabelValues(driver),
		pumpErrors:      m.pumpErrors.WithLabelValues(driver),
		recorderBytes:   m.recorderBytes.WithLabelValues(driver),
		recorderDropped: m.recorderDropped.WithLabelValues(driver),
	}
}

// HostRecorder records audio cycle events for one driver.
type HostRecorder struct {
	cycles          prometheus.Counter
	cycleDuration   prometheus.Observer
	overruns        prometheus.Counter
	pumpErrors      prometheus.Counter
	recorderBytes   prometheus.Counter
	recorderDropped prometheus.Counter
}

// RecordCycle counts a cycle and observes its duration.
func (r *HostRecorder) RecordCycle(duration time.Duration, overrun bool) {
	r.cycles.Inc()
	r.cycleDuration.Observe(duration.Seconds())
	if overrun {
		r.overruns.Inc()
	}
}

// RecordPumpError counts a cycle whose pump failed.
func (r *HostRecorder) RecordPumpError() {
	r.pumpErrors.Inc()
}

// RecordRecorderBytes adds written and dropped byte counts.
func (r *HostRecorder) RecordRecorderBytes(written, dropped int) {
	if written > 0 {
		r.recorderBytes.Add(float64(written))
	}
	if dropped > 0 {
		r.recorderDropped.Add(float64(dropped))
	}
}
