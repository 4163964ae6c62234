// Package testutil provides shared test helpers for driving the worker and
// host from tests.
package testutil

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second

	// LongTestTimeout is for operations that may take longer (CI environments).
	LongTestTimeout = 30 * time.Second
)

// WaitForChannel waits for a signal on the channel or fails after timeout.
// Use this for waiting on done channels, job completion signals, etc.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
		// Success
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// PumpUntil plays the audio thread: it calls pump repeatedly until cond
// holds, failing the test after timeout. pump errors do not stop the loop,
// since a plugin may legitimately reject a response, but the last one is
// included in the failure message.
func PumpUntil(t *testing.T, pump func() error, cond func() bool, timeout time.Duration) {
	t.Helper()

	var lastErr error
	deadline := time.Now().Add(timeout)
	for {
		if err := pump(); err != nil {
			lastErr = err
		}
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			require.Failf(t, "condition not met while pumping", "timeout %s, last pump error: %v", timeout, lastErr)
			return
		}
		runtime.Gosched()
		time.Sleep(100 * time.Microsecond)
	}
}
