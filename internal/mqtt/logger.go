package mqtt

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
