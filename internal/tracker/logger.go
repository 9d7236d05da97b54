package tracker

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the tracker module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("tracker")
}
