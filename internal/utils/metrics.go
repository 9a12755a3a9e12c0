package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	requests       prometheus.Counter
	errors         prometheus.Counter
	operationTimes *prometheus.HistogramVec
	openViews      prometheus.Gauge
	insertEvents   *prometheus.CounterVec

	systemStartTime time.Time
}

// NewMetricsCollector registers the collector's metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "compath_requests_total",
			Help: "Total number of handled HTTP requests",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "compath_errors_total",
			Help: "Total number of failed operations",
		}),
		operationTimes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compath_operation_duration_seconds",
			Help:    "Latency of named operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		openViews: factory.NewGauge(prometheus.GaugeOpts{
			Name: "compath_open_views",
			Help: "Number of live community views currently open",
		}),
		insertEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compath_insert_events_total",
			Help: "Row insert notifications received, by table",
		}, []string{"table"}),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.requests.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.errors.Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.operationTimes.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) ViewOpened() {
	mc.openViews.Inc()
}

func (mc *MetricsCollector) ViewClosed() {
	mc.openViews.Dec()
}

func (mc *MetricsCollector) InsertEventReceived(table string) {
	mc.insertEvents.WithLabelValues(table).Inc()
}

func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.systemStartTime)
}
