package motion

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the motion module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("motion")
}
