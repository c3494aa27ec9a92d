// Package metrics exposes runtime activity as prometheus collectors.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without nil checks at every call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeCached   = "cached"
)

// Collector bundles the runtime's prometheus collectors in a private registry.
type Collector struct {
	registry *prometheus.Registry

	executions       *prometheus.CounterVec
	duration         prometheus.Histogram
	confidence       prometheus.Histogram
	leaseState       *prometheus.GaugeVec
	leaseTransitions *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// New creates a collector whose metric names are prefixed with namespace.
// Go runtime and process collectors are registered as well.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Analysis requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time spent executing analysis requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "result_confidence",
			Help:      "Confidence attached to successful results.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		leaseState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_lease_state",
			Help:      "1 for the current registry lease state.",
		}, []string{"state"}),
		leaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_lease_transitions_total",
			Help:      "Registry lease state transitions by target state.",
		}, []string{"to"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Analysis requests currently executing.",
		}),
	}

	c.registry.MustRegister(
		c.executions,
		c.duration,
		c.confidence,
		c.leaseState,
		c.leaseTransitions,
		c.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}

	return c.registry
}

// Handler serves the collected metrics in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveExecution records one finished request. Confidence is only
// observed for successful and cached outcomes.
func (c *Collector) ObserveExecution(outcome string, confidence float64, d time.Duration) {
	if c == nil {
		return
	}

	c.executions.WithLabelValues(outcome).Inc()
	c.duration.Observe(d.Seconds())

	if outcome == OutcomeSuccess || outcome == OutcomeCached {
		c.confidence.Observe(confidence)
	}
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (c *Collector) TrackInFlight() func() {
	if c == nil {
		return func() {}
	}

	c.inFlight.Inc()

	return c.inFlight.Dec
}

// LeaseTransition records a lease state change and marks to as current.
func (c *Collector) LeaseTransition(to string) {
	if c == nil {
		return
	}

	c.leaseTransitions.WithLabelValues(to).Inc()
	c.leaseState.Reset()
	c.leaseState.WithLabelValues(to).Set(1)
}
