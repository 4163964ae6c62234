package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danfengzi/obs-lv2/internal/logger"
)

// Label values shared with the worker package.
const (
	directionRequest  = "request"
	directionResponse = "response"

	workOK    = "ok"
	workError = "error"
	workPanic = "panic"
)

// WorkerMetrics contains Prometheus metrics for the work offload channel.
type WorkerMetrics struct {
	registry *prometheus.Registry

	scheduled      *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	work           *prometheus.CounterVec
	workDuration   *prometheus.HistogramVec
	delivered      *prometheus.CounterVec
	running        *prometheus.GaugeVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewWorkerMetrics creates and registers new worker metrics
func NewWorkerMetrics(registry *prometheus.Registry) (*WorkerMetrics, error) {
	m := &WorkerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WorkerMetrics) initMetrics() {
	m.scheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "scheduled_total",
			Help:      "Total number of work requests accepted from the audio thread",
		},
		[]string{"worker_id"},
	)

	m.rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "rejected_total",
			Help:      "Total number of frames rejected because a ring was full",
		},
		[]string{"worker_id", "direction"}, // request, response
	)

	m.protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "protocol_errors_total",
			Help:      "Total number of framing contract violations",
		},
		[]string{"worker_id", "direction"},
	)

	m.work = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "work_total",
			Help:      "Total number of work callbacks by outcome",
		},
		[]string{"worker_id", "status"}, // ok, error, panic
	)

	m.workDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "work_duration_seconds",
			Help:      "Time spent in work callbacks",
			Buckets:   prometheus.ExponentialBuckets(BucketStart10us, BucketFactor2, BucketCount14),
		},
		[]string{"worker_id"},
	)

	m.delivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "responses_delivered_total",
			Help:      "Total number of responses handed to the plugin on the audio thread",
		},
		[]string{"worker_id"},
	)

	m.running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "running",
			Help:      "1 while the worker goroutine is running",
		},
		[]string{"worker_id"},
	)

	m.collectors = []prometheus.Collector{
		m.scheduled,
		m.rejected,
		m.protocolErrors,
		m.work,
		m.workDuration,
		m.delivered,
		m.running,
	}
}

// Describe implements the prometheus.Collector interface
func (m *WorkerMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *WorkerMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ForWorker returns a recorder bound to one worker instance. All label
// children are resolved here so that recording never touches the label maps.
func (m *WorkerMetrics) ForWorker(workerID string) *WorkerRecorder {
	log.Debug("registering worker metrics", logger.String("worker_id", workerID))

	return &WorkerRecorder{
		scheduled:        m.scheduled.WithLabelValues(workerID),
		rejectedRequest:  m.rejected.WithLabelValues(workerID, directionRequest),
		rejectedResponse: m.rejected.WithLabelValues(workerID, directionResponse),
		protocolRequest:  m.protocolErrors.WithLabelValues(workerID, directionRequest),
		protocolResponse: m.protocolErrors.WithLabelValues(workerID, directionResponse),
		workOK:           m.work.WithLabelValues(workerID, workOK),
		workError:        m.work.WithLabelValues(workerID, workError),
		workPanic:        m.work.WithLabelValues(workerID, workPanic),
		workDuration:     m.workDuration.WithLabelValues(workerID),
		delivered:        m.delivered.WithLabelValues(workerID),
		running:          m.running.WithLabelValues(workerID),
	}
}

// WorkerRecorder records the events of a single worker.
type WorkerRecorder struct {
	scheduled        prometheus.Counter
	rejectedRequest  prometheus.Counter
	rejectedResponse prometheus.Counter
	protocolRequest  prometheus.Counter
	protocolResponse prometheus.Counter
	workOK           prometheus.Counter
	workError        prometheus.Counter
	workPanic        prometheus.Counter
	workDuration     prometheus.Observer
	delivered        prometheus.Counter
	running          prometheus.Gauge
}

// RecordScheduled counts a request accepted by Schedule.
func (r *WorkerRecorder) RecordScheduled() {
	r.scheduled.Inc()
}

// RecordRejected counts a frame refused for lack of space.
func (r *WorkerRecorder) RecordRejected(direction string) {
	if direction == directionResponse {
		r.rejectedResponse.Inc()
		return
	}
	r.rejectedRequest.Inc()
}

// RecordProtocolError counts a framing violation.
func (r *WorkerRecorder) RecordProtocolError(direction string) {
	if direction == directionResponse {
		r.protocolResponse.Inc()
		return
	}
	r.protocolRequest.Inc()
}

// RecordWork counts one work callback and observes its duration.
func (r *WorkerRecorder) RecordWork(status string, duration time.Duration) {
	switch status {
	case workOK:
		r.workOK.Inc()
	case workPanic:
		r.workPanic.Inc()
	default:
		r.workError.Inc()
	}
	r.workDuration.Observe(duration.Seconds())
}

// RecordDelivered counts a response handed to WorkResponse.
func (r *WorkerRecorder) RecordDelivered() {
	r.delivered.Inc()
}

// SetRunning flips the running gauge.
func (r *WorkerRecorder) SetRunning(running bool) {
	if running {
		r.running.Set(1)
		return
	}
	r.running.Set(0)
}
