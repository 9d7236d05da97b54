package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	collectorSet

	dbOperationsTotal   *prometheus.CounterVec
	dbOperationDuration *prometheus.HistogramVec
	dbRowsDeleted       prometheus.Counter
}

// NewDatastoreMetrics creates and registers datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := register(registry, "datastore", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_db_operations_total",
		Help: "Database operations by operation and status",
	}, []string{"operation", "status"})
	m.dbOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "birdview_db_operation_duration_seconds",
		Help:    "Duration of database operations",
		Buckets: dbBuckets,
	}, []string{"operation"})
	m.dbRowsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_db_rows_deleted_total",
		Help: "Detection rows removed by retention",
	})
	m.collectors = []prometheus.Collector{m.dbOperationsTotal, m.dbOperationDuration, m.dbRowsDeleted}
}

// RecordOperation records the outcome and duration of operation.
func (m *DatastoreMetrics) RecordOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := ResultSuccess
	if err != nil {
		status = ResultFailure
	}
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.dbOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AddRowsDeleted counts rows removed by retention.
func (m *DatastoreMetrics) AddRowsDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.dbRowsDeleted.Add(float64(n))
}
