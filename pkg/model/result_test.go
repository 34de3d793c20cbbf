package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationResult_SerializedShape(t *testing.T) {
	resolved := EvaluationResult{
		Value:        true,
		Variant:      "on",
		Reason:       StaticReason,
		FlagMetadata: Metadata{"team": "growth"},
	}

	out, err := json.Marshal(resolved)
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "value": true,
	  "variant": "on",
	  "reason": "STATIC",
	  "flagMetadata": {"team": "growth"}
	}`, string(out))
}

func TestEvaluationResult_ErrorShapeOmitsEmptyFields(t *testing.T) {
	failed := EvaluationResult{
		Reason:       ErrorReason,
		ErrorCode:    FlagNotFoundErrorCode,
		ErrorMessage: `no flag found for key "nope"`,
	}

	out, err := json.Marshal(failed)
	require.NoError(t, err)

	// value stays present even when empty; variant and metadata disappear
	assert.Contains(t, string(out), `"value":null`)
	assert.NotContains(t, string(out), "variant")
	assert.NotContains(t, string(out), "flagMetadata")
}

func TestEvaluationResult_IsError(t *testing.T) {
	tests := map[string]struct {
		result EvaluationResult
		want   bool
	}{
		"static":        {EvaluationResult{Reason: StaticReason}, false},
		"targeting":     {EvaluationResult{Reason: TargetingMatchReason}, false},
		"default":       {EvaluationResult{Reason: DefaultReason}, false},
		"hard error":    {EvaluationResult{Reason: ErrorReason, ErrorCode: GeneralErrorCode}, true},
		"disabled shim": {EvaluationResult{Reason: DisabledReason, ErrorCode: FlagNotFoundErrorCode}, true},
		"fallback shim": {EvaluationResult{Reason: FallbackReason, ErrorCode: FlagNotFoundErrorCode}, true},
		"not found":     {EvaluationResult{Reason: FlagNotFoundReason, ErrorCode: FlagNotFoundErrorCode}, true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.IsError())
		})
	}
}

func TestUpdateStateResult_SerializedShape(t *testing.T) {
	ok := UpdateStateResult{Success: true, ChangedFlags: []string{"a", "b"}}
	out, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "changedFlags": ["a", "b"]}`, string(out))

	failed := UpdateStateResult{Error: "parsing configuration document: unexpected EOF"}
	out, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": false, "error": "parsing configuration document: unexpected EOF"}`, string(out))
}
