package host

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the host module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("host")
}
