package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the orchestrator, detector, classifier and tracker.
type PipelineMetrics struct {
	collectorSet

	Ticks           prometheus.Counter
	TickDuration    prometheus.Histogram
	TickOverruns    prometheus.Counter
	MotionRejected  prometheus.Counter
	Detections      prometheus.Counter
	Classifications *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	VisitsCompleted prometheus.Counter
	VisitsDropped   prometheus.Counter
	ActiveVisits    prometheus.Gauge
	DetectionsToday prometheus.Gauge
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := register(registry, "pipeline", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_ticks_total",
		Help: "Total number of orchestrator ticks",
	})
	m.TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdview_pipeline_tick_duration_seconds",
		Help:    "Time spent processing one tick",
		Buckets: inferenceBuckets,
	})
	m.TickOverruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_tick_overruns_total",
		Help: "Ticks that took longer than the tick period",
	})
	m.MotionRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_motion_rejected_total",
		Help: "Frames rejected by the motion gate",
	})
	m.Detections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_detections_total",
		Help: "Bird detections that passed all detector filters",
	})
	m.Classifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_pipeline_classifications_total",
		Help: "Classification attempts by result",
	}, []string{"result"})
	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "birdview_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: inferenceBuckets,
	}, []string{"stage"})
	m.StageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_pipeline_stage_errors_total",
		Help: "Errors caught inside pipeline stages",
	}, []string{"stage"})
	m.VisitsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_visits_completed_total",
		Help: "Visits finalized with a classification",
	})
	m.VisitsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_pipeline_visits_dropped_total",
		Help: "Visits expired without ever being classified",
	})
	m.ActiveVisits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_pipeline_active_visits",
		Help: "Visits currently tracked",
	})
	m.DetectionsToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdview_pipeline_detections_today",
		Help: "Completed visits since local midnight",
	})
	m.collectors = []prometheus.Collector{
		m.Ticks, m.TickDuration, m.TickOverruns, m.MotionRejected, m.Detections,
		m.Classifications, m.StageDuration, m.StageErrors,
		m.VisitsCompleted, m.VisitsDropped, m.ActiveVisits, m.DetectionsToday,
	}
}

// ObserveTick records one tick and whether it overran period.
func (m *PipelineMetrics) ObserveTick(d, period time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
	if d > period {
		m.TickOverruns.Inc()
	}
}

// IncMotionRejected counts a frame dropped by the motion gate.
func (m *PipelineMetrics) IncMotionRejected() {
	if m == nil {
		return
	}
	m.MotionRejected.Inc()
}

// AddDetections counts detections from one frame.
func (m *PipelineMetrics) AddDetections(n int) {
	if m == nil {
		return
	}
	m.Detections.Add(float64(n))
}

// IncClassification counts one classifier result (success, none or failure).
func (m *PipelineMetrics) IncClassification(result string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(result).Inc()
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncStageError counts an error caught in stage.
func (m *PipelineMetrics) IncStageError(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

// RecordVisits records tracker output for one tick.
func (m *PipelineMetrics) RecordVisits(completed, dropped, active int) {
	if m == nil {
		return
	}
	m.VisitsCompleted.Add(float64(completed))
	m.VisitsDropped.Add(float64(dropped))
	m.ActiveVisits.Set(float64(active))
}

// SetDetectionsToday records the daily counter.
func (m *PipelineMetrics) SetDetectionsToday(n int) {
	if m == nil {
		return
	}
	m.DetectionsToday.Set(float64(n))
}
