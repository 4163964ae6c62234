// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/danfengzi/obs-lv2/internal/buildinfo"
	"github.com/danfengzi/obs-lv2/internal/conf"
	"github.com/danfengzi/obs-lv2/internal/errors"
	"github.com/danfengzi/obs-lv2/internal/logger"
	"github.com/danfengzi/obs-lv2/internal/privacy"
)

// DeferredMessage represents a message that was captured before Sentry initialization
type DeferredMessage struct {
	Message   string
	Level     sentry.Level
	Component string
	Timestamp time.Time
}

var (
	enabled          atomic.Bool
	deferredMutex    sync.Mutex
	initialized      bool
	deferredMessages []DeferredMessage
)

// maxDeferredMessages bounds the backlog kept while Sentry is not initialized.
const maxDeferredMessages = 100

// InitSentry initializes the Sentry SDK if enabled in settings. It is a
// no-op returning nil when Sentry is disabled.
func InitSentry(settings *conf.Settings, info buildinfo.BuildInfo) error {
	if !settings.Sentry.Enabled {
		GetLogger().Debug("Sentry telemetry is disabled (opt-in required)")
		return nil
	}

	return initSentry(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		Debug:            settings.Sentry.Debug,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("obs-lv2@%s", info.GetVersion()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}, info)
}

// initSentry finishes initialization for a prepared set of client options.
func initSentry(opts sentry.ClientOptions, info buildinfo.BuildInfo) error {
	if err := sentry.Init(opts); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureSentryScope(info)
	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	enabled.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	deferredCount := processDeferredMessages()
	GetLogger().Info("Sentry telemetry initialized",
		logger.String("release", info.GetVersion()),
		logger.Int("deferred_messages", deferredCount))

	return nil
}

// Shutdown flushes pending events and disables reporting.
func Shutdown(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
	enabled.Store(false)
	errors.SetTelemetryReporter(nil)

	deferredMutex.Lock()
	initialized = false
	deferredMutex.Unlock()
}

// applyPrivacyFilters strips host identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	return event
}

// configureSentryScope tags every event with build and platform information.
func configureSentryScope(info buildinfo.BuildInfo) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("system_id", info.GetSystemID())

		scope.SetContext("application", map[string]any{
			"name":       "obs-lv2",
			"version":    info.GetVersion(),
			"build_date": info.GetBuildDate(),
		})
		scope.SetContext("platform", map[string]any{
			"os":           runtime.GOOS,
			"architecture": runtime.GOARCH,
			"num_cpu":      runtime.NumCPU(),
			"go_version":   runtime.Version(),
		})
	})
}

// processDeferredMessages sends messages captured before Sentry was ready.
func processDeferredMessages() int {
	deferredMutex.Lock()
	initialized = true
	pending := deferredMessages
	deferredMessages = nil
	deferredMutex.Unlock()

	for _, msg := range pending {
		CaptureMessage(msg.Message, msg.Level, msg.Component)
	}

	return len(pending)
}

// CaptureError reports err with a readable title derived from its message.
func CaptureError(err error, component string) {
	if err == nil || !enabled.Load() {
		return
	}

	scrubbed := errors.ScrubMessage(err.Error())
	title := generateErrorTitle(scrubbed, component)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("error_title", title)
		scope.SetFingerprint([]string{title, component})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{
			Type:  title,
			Value: scrubbed,
		}}
		sentry.CaptureEvent(event)
	})
}

// CaptureMessage reports a message at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !enabled.Load() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(errors.ScrubMessage(message))
	})
}

// CaptureMessageDeferred is CaptureMessage for code that may run before
// InitSentry. Messages are held until initialization and dropped if
// Sentry is never enabled.
func CaptureMessageDeferred(message string, level sentry.Level, component string) {
	deferredMutex.Lock()
	if initialized {
		deferredMutex.Unlock()
		CaptureMessage(message, level, component)
		return
	}
	defer deferredMutex.Unlock()

	if len(deferredMessages) >= maxDeferredMessages {
		return
	}
	deferredMessages = append(deferredMessages, DeferredMessage{
		Message:   message,
		Level:     level,
		Component: component,
		Timestamp: time.Now(),
	})
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
}

// generateErrorTitle creates a meaningful error title for Sentry from the
// message of a recovered panic or error.
func generateErrorTitle(errMsg, component string) string {
	errorType := parseErrorType(errMsg)
	if component != "" && component != errors.ComponentUnknown {
		return fmt.Sprintf("%s: %s", titleCaseComponent(component), errorType)
	}
	return errorType
}

// parseErrorType extracts a human-readable error type from the error message
func parseErrorType(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "nil pointer dereference"):
		return "Nil Pointer Dereference"
	case strings.Contains(errMsg, "index out of range"):
		return "Index Out of Range"
	case strings.Contains(errMsg, "slice bounds out of range"):
		return "Slice Bounds Out of Range"
	case strings.Contains(errMsg, "integer divide by zero"):
		return "Integer Divide by Zero"
	case strings.Contains(errMsg, "send on closed channel"):
		return "Send on Closed Channel"
	case strings.Contains(errMsg, "panic"):
		return "Plugin Panic"
	case strings.Contains(errMsg, "timed out waiting for worker"):
		return "Worker Stop Timeout"
	default:
		return "Error"
	}
}

// titleCaseComponent turns "plugins.sampler" into "Plugins Sampler".
func titleCaseComponent(component string) string {
	words := strings.FieldsFunc(component, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
