// Package metrics provides custom Prometheus metrics for obs-lv2.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Plugins depend on it rather than on a concrete collector, so tests can
// pass a fake and production code a *PluginRecorder.
type Recorder interface {
	// RecordOperation records an operation with its status, e.g. ("sample_load", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NoOpRecorder is a Recorder that discards everything.
type NoOpRecorder struct{}

// RecordOperation does nothing.
func (NoOpRecorder) RecordOperation(operation, status string) {}

// RecordDuration does nothing.
func (NoOpRecorder) RecordDuration(operation string, seconds float64) {}

// RecordError does nothing.
func (NoOpRecorder) RecordError(operation, errorType string) {}
