package accelerator

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the accelerator module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("accelerator")
}
