package clip

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the clip module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("clip")
}
