package camera

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the camera module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("camera")
}
