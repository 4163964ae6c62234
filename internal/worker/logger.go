package worker

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the worker package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("worker")
}
