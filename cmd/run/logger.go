package run

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the run command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("run")
}
