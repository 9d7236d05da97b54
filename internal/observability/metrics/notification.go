package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks push notifications.
type NotificationMetrics struct {
	collectorSet

	Sent        *prometheus.CounterVec
	RateLimited prometheus.Counter
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{}
	m.initMetrics()
	if err := register(registry, "notification", m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.Sent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdview_notifications_sent_total",
		Help: "Notification deliveries by service and result",
	}, []string{"service", "result"})
	m.RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdview_notifications_rate_limited_total",
		Help: "Notifications dropped by the rate limiter",
	})
	m.collectors = []prometheus.Collector{m.Sent, m.RateLimited}
}

// IncSent counts a delivery outcome for service.
func (m *NotificationMetrics) IncSent(service string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.Sent.WithLabelValues(service, result).Inc()
}

// IncRateLimited counts a notification dropped by the limiter.
func (m *NotificationMetrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
