package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the dispatcher's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	enqueued   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewMetrics registers the dispatcher collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "dispatcher",
			Name:      "enqueued_total",
			Help:      "Notifications accepted onto the queue by sink.",
		}, []string{"sink"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "dispatcher",
			Name:      "dropped_total",
			Help:      "Notifications never delivered, by reason.",
		}, []string{"reason"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "dispatcher",
			Name:      "deliveries_total",
			Help:      "Delivery attempts by sink and result.",
		}, []string{"sink", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iobridge",
			Subsystem: "dispatcher",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in a single delivery attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "iobridge",
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Requests waiting for the worker.",
		}),
	}
}

func (m *Metrics) enqueue(sink string, depth int) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(sink).Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) drop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) discard(n int) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues("shutdown").Add(float64(n))
}

func (m *Metrics) depth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) result(sink string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.deliveries.WithLabelValues(sink, result).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(sink).Observe(elapsed.Seconds())
	}
}
