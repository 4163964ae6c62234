package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danfengzi/obs-lv2/internal/buildinfo"
	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/errors"
)

// initForTesting initializes Sentry with a mock transport so that tests never
// send real data.
func initForTesting(t *testing.T) *MockTransport {
	t.Helper()

	transport := &MockTransport{}
	err := initSentry(sentry.ClientOptions{
		Dsn:         "",
		Transport:   transport,
		Environment: "test",
		SampleRate:  1.0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}, &buildinfo.Context{Version: "test", SystemID: "ABCD-0123-4567"})
	require.NoError(t, err)

	t.Cleanup(func() {
		Shutdown(time.Second)
		deferredMutex.Lock()
		deferredMessages = nil
		deferredMutex.Unlock()
	})
	return transport
}

func TestInitSentryDisabled(t *testing.T) {
	require.NoError(t, InitSentry(&conf.Settings{}, buildinfo.New("dev", "")))
	assert.False(t, enabled.Load())
	assert.Nil(t, errors.GetTelemetryReporter())

	// Reporting while disabled is a silent no-op
	CaptureMessage("dropped", sentry.LevelInfo, "worker")
	CaptureError(fmt.Errorf("dropped"), "worker")
	Flush(time.Millisecond)
}

func TestDeferredMessagesAreSentAfterInit(t *testing.T) {
	CaptureMessageDeferred("early message", sentry.LevelWarning, "host")

	transport := initForTesting(t)
	require.True(t, transport.WaitForEventCount(1, 2*time.Second))

	events := transport.Events()
	assert.Equal(t, "early message", events[0].Message)
	assert.Equal(t, sentry.LevelWarning, events[0].Level)
	assert.Equal(t, "host", events[0].Tags["component"])
	assert.Equal(t, "ABCD-0123-4567", events[0].Tags["system_id"])

	// Once initialized, deferred capture sends immediately
	CaptureMessageDeferred("late message", sentry.LevelInfo, "host")
	require.True(t, transport.WaitForEventCount(2, 2*time.Second))
}

func TestCaptureErrorTitleAndScrubbing(t *testing.T) {
	transport := initForTesting(t)

	CaptureError(fmt.Errorf("worker: work callback panic: cannot open /home/alice/kick.wav"), "worker")
	require.True(t, transport.WaitForEventCount(1, 2*time.Second))

	event := transport.Events()[0]
	assert.Equal(t, "Worker: Plugin Panic", event.Tags["error_title"])
	assert.NotContains(t, event.Message, "alice")
	assert.Contains(t, event.Message, "/home/[USER]/kick.wav")
	require.Len(t, event.Exception, 1)
	assert.Equal(t, "Worker: Plugin Panic", event.Exception[0].Type)
}

func TestInitInstallsPrivacyScrubber(t *testing.T) {
	transport := initForTesting(t)

	CaptureMessage("metrics push to http://10.0.0.7:9091/job/obs failed", sentry.LevelError, "telemetry")
	require.True(t, transport.WaitForEventCount(1, 2*time.Second))

	msg := transport.Events()[0].Message
	assert.NotContains(t, msg, "10.0.0.7")
	assert.Contains(t, msg, "url-")
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.User = sentry.User{ID: "someone"}
	event.ServerName = "studio-pc"
	event.Contexts["device"] = sentry.Context{"model": "x"}
	event.Contexts["application"] = sentry.Context{"name": "obs-lv2"}
	event.Extra = map[string]any{"component": "host", "path": "/Users/bob/x"}
	event.Tags = map[string]string{"hostname": "studio-pc", "component": "host"}
	event.Message = "failed to load https://example.com/s.wav?token=abc"

	filtered := applyPrivacyFilters(event)

	assert.True(t, filtered.User.IsEmpty())
	assert.Empty(t, filtered.ServerName)
	assert.NotContains(t, filtered.Contexts, "device")
	assert.Contains(t, filtered.Contexts, "application")
	assert.Equal(t, map[string]any{"component": "host"}, filtered.Extra)
	assert.Equal(t, map[string]string{"component": "host"}, filtered.Tags)
	assert.NotContains(t, filtered.Message, "token=abc")
	assert.Contains(t, filtered.Message, "failed to load")
}

func TestParseErrorType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		msg  string
		want string
	}{
		{"runtime error: invalid memory address or nil pointer dereference", "Nil Pointer Dereference"},
		{"runtime error: index out of range [3] with length 2", "Index Out of Range"},
		{"worker: timed out waiting for worker to stop", "Worker Stop Timeout"},
		{"plugin panic: boom", "Plugin Panic"},
		{"something else", "Error"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, parseErrorType(tc.msg), tc.msg)
	}

	assert.Equal(t, "Plugins Sampler: Error", generateErrorTitle("x", "plugins.sampler"))
	assert.Equal(t, "Error", generateErrorTitle("x", errors.ComponentUnknown))
}
