package httpserver

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the httpserver module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("httpserver")
}
