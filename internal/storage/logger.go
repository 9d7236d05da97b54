package storage

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the storage module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("storage")
}
