package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the registry's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	live           *prometheus.GaugeVec
	transitions    *prometheus.CounterVec
	adapterErrors  *prometheus.CounterVec
	attachFailures *prometheus.CounterVec
	events         *prometheus.CounterVec
}

// NewMetrics registers the registry collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		live: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "iobridge",
			Subsystem: "registry",
			Name:      "live_channels",
			Help:      "Attached channels by direction.",
		}, []string{"direction"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "registry",
			Name:      "state_notifications_total",
			Help:      "State notifications emitted by direction.",
		}, []string{"direction"}),
		adapterErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "registry",
			Name:      "adapter_errors_total",
			Help:      "Source failures by source and operation.",
		}, []string{"source", "op"}),
		attachFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "registry",
			Name:      "attach_failures_total",
			Help:      "Abandoned attaches by source and reason.",
		}, []string{"source", "reason"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iobridge",
			Subsystem: "registry",
			Name:      "events_total",
			Help:      "Ingress events handled by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) setLive(d Direction, n int) {
	if m == nil {
		return
	}
	m.live.WithLabelValues(d.String()).Set(float64(n))
}

func (m *Metrics) notified(d Direction) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(d.String()).Inc()
}

func (m *Metrics) adapterError(source, op string) {
	if m == nil {
		return
	}
	m.adapterErrors.WithLabelValues(source, op).Inc()
}

func (m *Metrics) attachFailed(source, reason string) {
	if m == nil {
		return
	}
	m.attachFailures.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) event(k EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(k.String()).Inc()
}
