// Package telemetry provides Prometheus instrumentation for the evaluation
// engine.
//
// All metrics are registered in a custom [prometheus.Registry] (not the
// global default) so that embedders can expose them wherever they expose
// their own. Every recording method is safe to call on a nil *Metrics, which
// keeps instrumentation optional throughout the engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pennon-io/pennon/pkg/model"
)

// Update outcomes recorded by [Metrics.RecordUpdate].
const (
	UpdateApplied  = "applied"
	UpdateRejected = "rejected"
	UpdateFailed   = "failed"
)

// Metrics holds all Prometheus collectors used by the engine.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal      *prometheus.CounterVec
	EvaluationErrorsTotal *prometheus.CounterVec
	UpdatesTotal          *prometheus.CounterVec
	FlagsChangedTotal     prometheus.Counter
	FlagsCurrent          prometheus.Gauge
}

// New creates and registers all engine metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pennon_flag_evaluations_total",
			Help: "Total number of flag evaluations by resolution reason.",
		}, []string{"reason"}),

		EvaluationErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pennon_flag_evaluation_errors_total",
			Help: "Total number of flag evaluations that ended in an error.",
		}, []string{"code"}),

		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pennon_config_updates_total",
			Help: "Total number of configuration update attempts by outcome.",
		}, []string{"outcome"}),

		FlagsChangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pennon_flags_changed_total",
			Help: "Total number of flags added, removed or mutated by updates.",
		}),

		FlagsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pennon_flags_current",
			Help: "Number of flags in the currently served configuration.",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationErrorsTotal,
		m.UpdatesTotal,
		m.FlagsChangedTotal,
		m.FlagsCurrent,
	)

	return m
}

// RecordEvaluation increments the evaluation counter for the reason, and the
// error counter when the evaluation ended in an error.
func (m *Metrics) RecordEvaluation(reason, errorCode string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(reason).Inc()
	if reason == model.ErrorReason {
		m.EvaluationErrorsTotal.WithLabelValues(errorCode).Inc()
	}
}

// RecordUpdate records a configuration update attempt. The changed and total
// counts only apply to the applied outcome.
func (m *Metrics) RecordUpdate(outcome string, changed, total int) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(outcome).Inc()
	if outcome == UpdateApplied {
		m.FlagsChangedTotal.Add(float64(changed))
		m.FlagsCurrent.Set(float64(total))
	}
}
