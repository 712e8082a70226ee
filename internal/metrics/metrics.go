// Package metrics holds the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Submissions counts verification attempts by terminal outcome
	// (approved, rejected, error).
	Submissions *prometheus.CounterVec

	// IntegrityFailOpen counts integrity checks that errored internally
	// and were mapped to a pass. Operators watch this to monitor the
	// false-open rate of the fail-open policy.
	IntegrityFailOpen *prometheus.CounterVec

	// ExtractionFailures counts text/field extraction failures by stage.
	ExtractionFailures *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates and registers all metrics on the given registerer.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate
// registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payquest_submissions_total",
			Help: "Total verification attempts by terminal outcome",
		}, []string{"outcome"}),
		IntegrityFailOpen: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payquest_integrity_fail_open_total",
			Help: "Integrity checks that errored internally and defaulted to pass",
		}, []string{"check"}),
		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payquest_extraction_failures_total",
			Help: "Receipt extraction failures by pipeline stage",
		}, []string{"stage"}),
	}
}
