package frigate

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the frigate module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("frigate")
}
