package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FrigateMetrics tracks external event ingestion.
type FrigateMetrics struct {
	collectorSet

	EventsReceived  prometheus.Counter
	EventsProcessed *prometheus.CounterVec
	InFlight        prometheus.Gauge
	FetchDuration   *prometheus.HistogramVec
	ClipDownloads   *prometheus.CounterVec
}

// NewFrigateMetrics creates and registers Frigate metrics.
func NewFrigateMetrics(registry *prometheus.Registry) (*FrigateMetrics, error) {
	m := &FrigateMetrics{}
	m.initMetrics()
	if err := register(registry, "frigate", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FrigateMetrics) initMetrics() {
	m.EventsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_frigate_events_received_total",
		Help: "Bird events received from Frigate",
	})
	m.EventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_frigate_events_processed_total",
		Help: "Frigate events by processing result",
	}, []string{"result"})
	m.InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_frigate_events_in_flight",
		Help: "Events currently being classified",
	})
	m.FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "birdview_frigate_fetch_duration_seconds",
		Help:    "Duration of media downloads from Frigate",
		Buckets: encodeBuckets,
	}, []string{"kind"})
	m.ClipDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_frigate_clip_downloads_total",
		Help: "Delayed clip downloads by result",
	}, []string{"result"})
	m.collectors = []prometheus.Collector{
		m.EventsReceived, m.EventsProcessed, m.InFlight, m.FetchDuration, m.ClipDownloads,
	}
}

// IncReceived counts an accepted bird event.
func (m *FrigateMetrics) IncReceived() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

// IncProcessed counts a processed event by result.
func (m *FrigateMetrics) IncProcessed(result string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(result).Inc()
}

// AddInFlight adjusts the in-flight gauge by delta.
func (m *FrigateMetrics) AddInFlight(delta int) {
	if m == nil {
		return
	}
	m.InFlight.Add(float64(delta))
}

// ObserveFetch records a media download duration for kind (snapshot or clip).
func (m *FrigateMetrics) ObserveFetch(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncClipDownload counts a clip download outcome.
func (m *FrigateMetrics) IncClipDownload(result string) {
	if m == nil {
		return
	}
	m.ClipDownloads.WithLabelValues(result).Inc()
}
