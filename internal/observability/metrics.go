// Package observability provides metrics and monitoring capabilities for obs-lv2.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danfengzi/obs-lv2/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Worker   *metrics.WorkerMetrics
	Host     *metrics.HostMetrics
	Plugin   *metrics.PluginMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry,
// initializing all metric collectors along with the Go runtime and process
// collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	workerMetrics, err := metrics.NewWorkerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker metrics: %w", err)
	}

	hostMetrics, err := metrics.NewHostMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create host metrics: %w", err)
	}

	pluginMetrics, err := metrics.NewPluginMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Worker:   workerMetrics,
		Host:     hostMetrics,
		Plugin:   pluginMetrics,
	}, nil
}

// Registry returns the registry all collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
