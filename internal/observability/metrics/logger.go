// Package metrics provides Prometheus metric sets for each BirdView component.
//
// Every set is created against a registry with a NewXMetrics constructor and
// registers itself as a single prometheus.Collector. Recording methods are
// safe to call on a nil set so components can run without metrics.
package metrics

import "github.com/ando01/BirdView/internal/logger"

// GetLogger returns the metrics module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
