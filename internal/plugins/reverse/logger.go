package reverse

import "github.com/danfengzi/obs-lv2/internal/logger"

// GetLogger returns the reverse plugin logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("plugins").Module("reverse")
}
