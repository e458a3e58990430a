package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Poll check outcomes.
const (
	CheckFresh          = "fresh"
	CheckNotReady       = "not_ready"
	CheckTransportError = "transport_error"
)

// Report statuses.
const (
	ReportPublished = "published"
	ReportFailed    = "failed"
)

// Metrics holds the collectors for one process. All methods are safe on a nil receiver
// so components can run without instrumentation.
type Metrics struct {
	registry      *prometheus.Registry
	pollChecks    *prometheus.CounterVec
	retriggers    prometheus.Counter
	reports       *prometheus.CounterVec
	publishTiming prometheus.Histogram
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cureports_poll_checks_total",
				Help: "Conditional fetches of query results, by outcome.",
			},
			[]string{"outcome"},
		),
		retriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cureports_poll_retriggers_total",
			Help: "Query executions re-triggered while waiting for results.",
		}),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cureports_reports_total",
				Help: "Report generations, by query and final status.",
			},
			[]string{"query", "status"},
		),
		publishTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cureports_publish_seconds",
			Help:    "Duration of report uploads to object storage.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}

	m.registry.MustRegister(m.pollChecks, m.retriggers, m.reports, m.publishTiming)

	for _, outcome := range []string{CheckFresh, CheckNotReady, CheckTransportError} {
		m.pollChecks.WithLabelValues(outcome)
	}

	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveCheck(outcome string) {
	if m == nil {
		return
	}
	m.pollChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetrigger() {
	if m == nil {
		return
	}
	m.retriggers.Inc()
}

func (m *Metrics) ObserveReport(query, status string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(query, status).Inc()
}

func (m *Metrics) ObservePublish(seconds float64) {
	if m == nil {
		return
	}
	m.publishTiming.Observe(seconds)
}

// Push sends the current values to a Prometheus Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil {
		return errors.New("nil metrics")
	}
	if gatewayURL == "" {
		return errors.New("pushgateway url is required")
	}
	return push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx)
}
