package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CameraMetrics tracks the frame source.
type CameraMetrics struct {
	collectorSet

	Connected      prometheus.Gauge
	FPS            prometheus.Gauge
	Reconnects     prometheus.Counter
	FramesCaptured prometheus.Counter
	ReadFailures   prometheus.Counter
	BufferFrames   prometheus.Gauge
}

// NewCameraMetrics creates and registers camera metrics.
func NewCameraMetrics(registry *prometheus.Registry) (*CameraMetrics, error) {
	m := &CameraMetrics{}
	m.initMetrics()
	if err := register(registry, "camera", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CameraMetrics) initMetrics() {
	m.Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_camera_connected",
		Help: "Camera stream connection status (1 connected, 0 disconnected)",
	})
	m.FPS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_camera_fps",
		Help: "Frame rate reported by the stream on the last connect",
	})
	m.Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_camera_reconnects_total",
		Help: "Total number of stream reconnect attempts",
	})
	m.FramesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_camera_frames_captured_total",
		Help: "Total number of frames read from the stream",
	})
	m.ReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_camera_read_failures_total",
		Help: "Total number of failed frame reads",
	})
	m.BufferFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_camera_buffer_frames",
		Help: "Frames currently held in the rolling buffer",
	})
	m.collectors = []prometheus.Collector{
		m.Connected, m.FPS, m.Reconnects, m.FramesCaptured, m.ReadFailures, m.BufferFrames,
	}
}

// SetConnected records the connection state.
func (m *CameraMetrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// SetFPS records the stream frame rate.
func (m *CameraMetrics) SetFPS(fps float64) {
	if m == nil {
		return
	}
	m.FPS.Set(fps)
}

// IncReconnects counts a reconnect attempt.
func (m *CameraMetrics) IncReconnects() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// RecordFrame counts a captured frame and the buffer occupancy after appending it.
func (m *CameraMetrics) RecordFrame(bufferLen int) {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	m.BufferFrames.Set(float64(bufferLen))
}

// IncReadFailures counts a failed read.
func (m *CameraMetrics) IncReadFailures() {
	if m == nil {
		return
	}
	m.ReadFailures.Inc()
}
