package settings

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the settings module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("settings")
}
