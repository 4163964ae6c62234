package errors

import (
	"fmt"
	"testing"
)

// BenchmarkErrorCreationNoTelemetry tests error creation performance when telemetry is disabled
func BenchmarkErrorCreationNoTelemetry(b *testing.B) {
	SetTelemetryReporter(nil)

	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).
			Component("test").
			Category(CategoryGeneric).
			Build()
	}
}

// BenchmarkSentinelMatch measures matching a prebuilt sentinel, the path taken on the audio thread.
func BenchmarkSentinelMatch(b *testing.B) {
	sentinel := New(NewStd("no space")).Category(CategoryLimit).Build()
	wrapped := fmt.Errorf("schedule: %w", sentinel)

	b.ReportAllocs()

	for b.Loop() {
		if !Is(wrapped, sentinel) {
			b.Fatal("sentinel did not match")
		}
	}
}
