package conf

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the config module logger. It is fetched on every call
// because the central logger is installed after settings are loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
