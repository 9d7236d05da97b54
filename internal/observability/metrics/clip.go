package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClipMetrics tracks clip encoding and transcoding.
type ClipMetrics struct {
	collectorSet

	Encodes        *prometheus.CounterVec
	EncodeDuration prometheus.Histogram
	Transcodes     *prometheus.CounterVec
	FramesEncoded  prometheus.Counter
}

// NewClipMetrics creates and registers clip metrics.
func NewClipMetrics(registry *prometheus.Registry) (*ClipMetrics, error) {
	m := &ClipMetrics{}
	m.initMetrics()
	if err := register(registry, "clip", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ClipMetrics) initMetrics() {
	m.Encodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_clip_encodes_total",
		Help: "Clip encode attempts by result",
	}, []string{"result"})
	m.EncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdview_clip_encode_duration_seconds",
		Help:    "Time to encode a clip including transcoding",
		Buckets: encodeBuckets,
	})
	m.Transcodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_clip_transcodes_total",
		Help: "ffmpeg transcode attempts by result",
	}, []string{"result"})
	m.FramesEncoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_clip_frames_encoded_total",
		Help: "Frames written to clip files",
	})
	m.collectors = []prometheus.Collector{m.Encodes, m.EncodeDuration, m.Transcodes, m.FramesEncoded}
}

// ObserveEncode records an encode outcome.
func (m *ClipMetrics) ObserveEncode(success bool, frames int, d time.Duration) {
	if m == nil {
		return
	}
	if success {
		m.Encodes.WithLabelValues(ResultSuccess).Inc()
		m.FramesEncoded.Add(float64(frames))
	} else {
		m.Encodes.WithLabelValues(ResultFailure).Inc()
	}
	m.EncodeDuration.Observe(d.Seconds())
}

// IncTranscode counts a transcode outcome.
func (m *ClipMetrics) IncTranscode(result string) {
	if m == nil {
		return
	}
	m.Transcodes.WithLabelValues(result).Inc()
}
