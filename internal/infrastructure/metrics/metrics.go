package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acm"

// Report outcomes recorded by StatusReport.
const (
	ReportApplied            = "applied"
	ReportUnknownComposition = "unknown_composition"
	ReportUnknownElement     = "unknown_element"
	ReportStaleParticipant   = "stale_participant"
	ReportStaleState         = "stale_state"
)

// Metrics holds the runtime's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	inflight           prometheus.Gauge
	commands           *prometheus.CounterVec
	publishFailures    prometheus.Counter
	reports            *prometheus.CounterVec
	participants       *prometheus.GaugeVec
	scannerTimeouts    *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Finished lifecycle transitions by operation and result.",
		}, []string{"operation", "result"}),
		transitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Wall time from dispatch start to outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"operation"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_transitions",
			Help:      "Transitions currently being dispatched.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_commands_total",
			Help:      "Commands emitted to participants by order.",
		}, []string{"order"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_publish_failures_total",
			Help:      "Commands the transport failed to publish.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reports_total",
			Help:      "Participant status reports by outcome.",
		}, []string{"outcome"}),
		participants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Known participants by health.",
		}, []string{"health"}),
		scannerTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervision_timeouts_total",
			Help:      "Operations marked TIMEOUT by the supervision scanner.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.transitionDuration,
		m.inflight,
		m.commands,
		m.publishFailures,
		m.reports,
		m.participants,
		m.scannerTimeouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TransitionStarted increments the in-flight gauge.
func (m *Metrics) TransitionStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// TransitionFinished records a transition outcome and decrements the
// in-flight gauge.
func (m *Metrics) TransitionFinished(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.transitions.WithLabelValues(operation, result).Inc()
	m.transitionDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CommandSent counts one outbound participant command.
func (m *Metrics) CommandSent(order string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(order).Inc()
}

// PublishFailed counts one command the transport could not deliver.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

// StatusReport counts one inbound report by outcome (see Report* constants).
func (m *Metrics) StatusReport(outcome string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(outcome).Inc()
}

// SetParticipants replaces the participant-health gauge values.
func (m *Metrics) SetParticipants(byHealth map[string]int) {
	if m == nil {
		return
	}
	m.participants.Reset()
	for health, n := range byHealth {
		m.participants.WithLabelValues(health).Set(float64(n))
	}
}

// ScannerTimeout counts an operation the scanner marked TIMEOUT. kind is
// "composition" or "definition".
func (m *Metrics) ScannerTimeout(kind string) {
	if m == nil {
		return
	}
	m.scannerTimeouts.WithLabelValues(kind).Inc()
}
