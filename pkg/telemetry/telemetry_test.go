package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennon-io/pennon/pkg/model"
)

func TestRecordEvaluation(t *testing.T) {
	m := New()

	m.RecordEvaluation(model.StaticReason, "")
	m.RecordEvaluation(model.StaticReason, "")
	m.RecordEvaluation(model.TargetingMatchReason, "")
	m.RecordEvaluation(model.ErrorReason, model.ParseErrorCode)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("STATIC")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("TARGETING_MATCH")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("ERROR")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationErrorsTotal.WithLabelValues("PARSE_ERROR")))
}

func TestRecordEvaluation_OnlyErrorsCountAsErrors(t *testing.T) {
	m := New()

	// carries an error code but is not an ERROR outcome
	m.RecordEvaluation(model.DisabledReason, model.FlagNotFoundErrorCode)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("DISABLED")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.EvaluationErrorsTotal.WithLabelValues("FLAG_NOT_FOUND")))
}

func TestRecordUpdate(t *testing.T) {
	m := New()

	m.RecordUpdate(UpdateApplied, 3, 12)
	m.RecordUpdate(UpdateApplied, 1, 11)
	m.RecordUpdate(UpdateRejected, 0, 0)
	m.RecordUpdate(UpdateFailed, 0, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.UpdatesTotal.WithLabelValues(UpdateApplied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpdatesTotal.WithLabelValues(UpdateRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpdatesTotal.WithLabelValues(UpdateFailed)))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.FlagsChangedTotal))
	assert.Equal(t, float64(11), testutil.ToFloat64(m.FlagsCurrent))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordEvaluation("STATIC", "")
		m.RecordUpdate(UpdateApplied, 1, 1)
	})
}

func TestNew_RegistersEverything(t *testing.T) {
	m := New()

	m.RecordEvaluation("STATIC", "")
	m.RecordUpdate(UpdateApplied, 1, 1)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "pennon_flag_evaluations_total")
	assert.Contains(t, names, "pennon_config_updates_total")
	assert.Contains(t, names, "pennon_flags_changed_total")
	assert.Contains(t, names, "pennon_flags_current")
}
