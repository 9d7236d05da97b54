package daylight

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the daylight module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("daylight")
}
