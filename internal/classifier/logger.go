package classifier

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the classifier module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classifier")
}
