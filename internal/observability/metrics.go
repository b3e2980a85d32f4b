package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lead_distribution"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and discards everything.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	leadsAssigned   *prometheus.CounterVec
	batches         *prometheus.CounterVec
	raceLosses      *prometheus.CounterVec
	rotationSkips   *prometheus.CounterVec
}

// NewMetrics creates and registers collectors on reg (prometheus.DefaultRegisterer if nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		leadsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_assigned_total",
			Help:      "Leads bound to staff by strategy.",
		}, []string{"strategy"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_batches_total",
			Help:      "Assignment batch transactions by result (committed, failed).",
		}, []string{"result"}),
		raceLosses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_race_losses_total",
			Help:      "Planned leads that were already claimed when the batch committed.",
		}, []string{"strategy"}),
		rotationSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_robin_skips_total",
			Help:      "Leads skipped by the round robin rotation by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.leadsAssigned, m.batches, m.raceLosses, m.rotationSkips)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordAssigned counts bound leads and the planned leads lost to concurrent callers.
func (m *Metrics) RecordAssigned(strategy string, requested, bound int) {
	if m == nil {
		return
	}
	m.leadsAssigned.WithLabelValues(strategy).Add(float64(bound))
	if lost := requested - bound; lost > 0 {
		m.raceLosses.WithLabelValues(strategy).Add(float64(lost))
	}
}

// RecordBatch counts a batch transaction outcome.
func (m *Metrics) RecordBatch(committed bool) {
	if m == nil {
		return
	}
	result := "committed"
	if !committed {
		result = "failed"
	}
	m.batches.WithLabelValues(result).Inc()
}

// RecordRotationSkip counts a lead the rotation could not place.
func (m *Metrics) RecordRotationSkip(reason string) {
	if m == nil {
		return
	}
	m.rotationSkips.WithLabelValues(reason).Inc()
}
