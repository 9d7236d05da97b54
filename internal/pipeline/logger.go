package pipeline

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the pipeline module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}
