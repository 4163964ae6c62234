package telemetry

import (
	"github.com/danfengzi/obs-lv2/internal/logger"
)

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
