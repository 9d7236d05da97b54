// Package observability wires the Prometheus registry shared by all components.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ando01/BirdView/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Camera       *metrics.CameraMetrics
	Pipeline     *metrics.PipelineMetrics
	Clip         *metrics.ClipMetrics
	Frigate      *metrics.FrigateMetrics
	MQTT         *metrics.MQTTMetrics
	Datastore    *metrics.DatastoreMetrics
	Notification *metrics.NotificationMetrics
}

// NewMetrics creates a registry with runtime collectors and every component set.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}
	var err error

	if m.Camera, err = metrics.NewCameraMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create camera metrics: %w", err)
	}
	if m.Pipeline, err = metrics.NewPipelineMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	if m.Clip, err = metrics.NewClipMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create clip metrics: %w", err)
	}
	if m.Frigate, err = metrics.NewFrigateMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create Frigate metrics: %w", err)
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	if m.Datastore, err = metrics.NewDatastoreMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}
	if m.Notification, err = metrics.NewNotificationMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}
	return m, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
