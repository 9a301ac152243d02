// Package telemetry records Prometheus metrics for analysis runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dejo1307/docdrift/internal/facts"
)

const namespace = "docdrift"

// Metrics holds the run metrics. A nil *Metrics records nothing.
type Metrics struct {
	// RunsTotal counts finished runs. Labels: outcome (complete, timed_out, critical_drift, error)
	RunsTotal *prometheus.CounterVec

	// PhaseDurationSeconds measures each pipeline phase. Labels: phase
	PhaseDurationSeconds *prometheus.HistogramVec

	// ClaimsTotal counts extracted claims. Labels: testable (true, false)
	ClaimsTotal *prometheus.CounterVec

	// DriftTotal counts drifting validation results. Labels: severity
	DriftTotal *prometheus.CounterVec

	// WarningsTotal counts non-fatal warnings. Labels: phase
	WarningsTotal *prometheus.CounterVec
}

// OutcomeError labels runs that ended with a fatal error.
const OutcomeError = "error"

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		PhaseDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"phase"}),
		ClaimsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Documentation claims extracted, by testability.",
		}, []string{"testable"}),
		DriftTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_results_total",
			Help:      "Validation results showing drift, by severity.",
		}, []string{"severity"}),
		WarningsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal warnings recorded during runs, by phase.",
		}, []string{"phase"}),
	}
}

// ObservePhase records the duration of one phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDurationSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRun records the outcome and counts of a finished run. A nil
// analysis is counted as an error.
func (m *Metrics) RecordRun(a *facts.RepositoryAnalysis) {
	if m == nil {
		return
	}
	if a == nil {
		m.RunsTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.RunsTotal.WithLabelValues(a.Outcome).Inc()

	if d := a.Documentation; d != nil {
		testable := len(d.TestableClaims())
		m.ClaimsTotal.WithLabelValues("true").Add(float64(testable))
		m.ClaimsTotal.WithLabelValues("false").Add(float64(len(d.Claims) - testable))
	}
	if r := a.DriftReport; r != nil {
		for sev, n := range r.CountBySeverity() {
			m.DriftTotal.WithLabelValues(string(sev)).Add(float64(n))
		}
	}
	for _, w := range a.Warnings {
		m.WarningsTotal.WithLabelValues(w.Phase).Inc()
	}
}
