package sampler

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the sampler plugin logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("plugins").Module("sampler")
}
