package errors

import (
	stderrors "errors"
	"runtime"
	"strings"
	"sync"
)

// modulePrefix is skipped during component detection.
const modulePrefix = "github.com/danfengzi/obs-lv2/internal/errors"

var (
	componentRegistry = make(map[string]string)
	registryMutex     sync.RWMutex
)

// RegisterComponent maps a package path pattern to a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("internal/ring", "ring")
	RegisterComponent("internal/worker", "worker")
	RegisterComponent("internal/host", "host")
	RegisterComponent("internal/plugins/sampler", "plugins.sampler")
	RegisterComponent("internal/plugins/reverse", "plugins.reverse")
	RegisterComponent("internal/session", "session")
	RegisterComponent("internal/conf", "configuration")
	RegisterComponent("internal/observability", "telemetry")
}

// detectComponent walks the call stack for the first frame outside this
// package and maps it to a component.
func detectComponent() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.Contains(frame.Function, modulePrefix) {
			if component := lookupComponent(frame.Function); component != ComponentUnknown {
				return component
			}
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// lookupComponent searches the registry for a matching component, falling
// back to the last package name in funcName.
func lookupComponent(funcName string) string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}

	lastPart := funcName[strings.LastIndexByte(funcName, '/')+1:]
	if dot := strings.IndexByte(lastPart, '.'); dot > 0 {
		return lastPart[:dot]
	}
	return ComponentUnknown
}

// detectCategory guesses a category from the error chain, its message and
// the component it came from.
func detectCategory(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}
	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no space") || strings.Contains(msg, "full"):
		return CategoryLimit
	case strings.Contains(msg, "frame") || strings.Contains(msg, "mismatch") || strings.Contains(msg, "invalid"):
		return CategoryValidation
	case strings.Contains(msg, "file") || strings.Contains(msg, "read") || strings.Contains(msg, "open"):
		return CategoryFileIO
	}

	switch component {
	case "ring":
		return CategoryBuffer
	case "worker":
		return CategoryWorker
	case "host":
		return CategoryAudio
	case "plugins.sampler", "plugins.reverse":
		return CategoryPlugin
	case "configuration":
		return CategoryConfiguration
	}
	return CategoryGeneric
}
