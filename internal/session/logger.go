package session

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the session module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}
