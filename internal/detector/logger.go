package detector

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the detector module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}
