package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PluginMetrics contains Prometheus metrics reported by hosted plugins
// from their worker side.
type PluginMetrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewPluginMetrics creates and registers new plugin metrics
func NewPluginMetrics(registry *prometheus.Registry) (*PluginMetrics, error) {
	m := &PluginMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PluginMetrics) initMetrics() {
	m.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "plugin",
			Name:      "operations_total",
			Help:      "Total number of plugin operations by status",
		},
		[]string{"plugin", "operation", "status"},
	)

	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "plugin",
			Name:      "operation_duration_seconds",
			Help:      "Time taken by plugin operations",
			Buckets:   prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount14), // 0.1ms to ~800ms
		},
		[]string{"plugin", "operation"},
	)

	m.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "plugin",
			Name:      "errors_total",
			Help:      "Total number of plugin errors by type",
		},
		[]string{"plugin", "operation", "error_type"},
	)

	m.collectors = []prometheus.Collector{
		m.operations,
		m.duration,
		m.errors,
	}
}

// Describe implements the prometheus.Collector interface
func (m *PluginMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *PluginMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ForPlugin returns a Recorder that labels everything with the plugin name.
func (m *PluginMetrics) ForPlugin(name string) *PluginRecorder {
	return &PluginRecorder{metrics: m, plugin: name}
}

// PluginRecorder implements Recorder for one plugin. It resolves labels on
// every call, so it belongs on the worker side only.
type PluginRecorder struct {
	metrics *PluginMetrics
	plugin  string
}

// RecordOperation implements Recorder.
func (r *PluginRecorder) RecordOperation(operation, status string) {
	r.metrics.operations.WithLabelValues(r.plugin, operation, status).Inc()
}

// RecordDuration implements Recorder.
func (r *PluginRecorder) RecordDuration(operation string, seconds float64) {
	r.metrics.duration.WithLabelValues(r.plugin, operation).Observe(seconds)
}

// RecordError implements Recorder.
func (r *PluginRecorder) RecordError(operation, errorType string) {
	r.metrics.errors.WithLabelValues(r.plugin, operation, errorType).Inc()
}
