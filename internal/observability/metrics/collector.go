package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// collectorSet implements prometheus.Collector over a fixed list of collectors.
type collectorSet struct {
	collectors []prometheus.Collector
}

// Describe implements the prometheus.Collector interface.
func (c *collectorSet) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range c.collectors {
		col.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (c *collectorSet) Collect(ch chan<- prometheus.Metric) {
	for _, col := range c.collectors {
		col.Collect(ch)
	}
}

func register(registry *prometheus.Registry, name string, c prometheus.Collector) error {
	if err := registry.Register(c); err != nil {
		return fmt.Errorf("failed to register %s metrics: %w", name, err)
	}
	return nil
}
