// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Namespace prefixes every metric exported by obs-lv2.
const Namespace = "lv2"

// Operation type constants recorded through the Recorder interface.
const (
	// OpSampleLoad represents decoding a sample file on the worker.
	OpSampleLoad = "sample_load"
	// OpSampleFree represents releasing a retired sample on the worker.
	OpSampleFree = "sample_free"
	// OpReverse represents a reverse plugin work request.
	OpReverse = "reverse"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart10us is the starting bucket for worker callback histograms (10µs to ~80ms range).
	BucketStart10us = 0.00001
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount14 defines 14 exponential buckets.
	BucketCount14 = 14
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)
