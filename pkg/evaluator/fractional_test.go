package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennon-io/pennon/pkg/model"
)

const fractionalFlags = `{
  "flags": {
    "headerColor": {
      "state": "ENABLED",
      "variants": {
        "red": "#FF0000",
        "blue": "#0000FF",
        "green": "#00FF00",
        "yellow": "#FFFF00"
      },
      "defaultVariant": "red",
      "targeting": {
        "fractional": [
          { "var": "email" },
          ["red", 25],
          ["blue", 25],
          ["green", 25],
          ["yellow", 25]
        ]
      }
    },
    "customDiscount": {
      "state": "ENABLED",
      "variants": { "on": 10, "off": 0 },
      "defaultVariant": "off",
      "targeting": {
        "fractional": [
          ["on", 50],
          ["off", 50]
        ]
      }
    },
    "accountBucket": {
      "state": "ENABLED",
      "variants": { "on": true, "off": false },
      "defaultVariant": "off",
      "targeting": {
        "fractional": [
          { "var": "accountId" },
          ["on", 50],
          ["off", 50]
        ]
      }
    }
  }
}`

func TestFractional_ExplicitKey_DistributesByEmail(t *testing.T) {
	resolver := newTestResolver(t, fractionalFlags)

	tests := map[string]string{
		"alice@example.com":   "blue",
		"bob@example.com":     "blue",
		"carol@example.com":   "yellow",
		"dave@example.com":    "yellow",
		"erin@example.com":    "green",
		"frank@example.com":   "blue",
		"heidi@example.com":   "red",
		"ivan@example.com":    "green",
		"judy@example.com":    "red",
		"mallory@example.com": "yellow",
		"nick@example.com":    "green",
		"peggy@example.com":   "green",
		"sybil@example.com":   "yellow",
		"ted@example.com":     "blue",
		"wendy@example.com":   "red",
	}

	for email, variant := range tests {
		t.Run(email, func(t *testing.T) {
			result := resolver.Evaluate(context.Background(), "headerColor", map[string]any{"email": email})

			require.Empty(t, result.ErrorCode, "unexpected error: %s", result.ErrorMessage)
			assert.Equal(t, variant, result.Variant)
			assert.Equal(t, model.TargetingMatchReason, result.Reason)
		})
	}
}

func TestFractional_ImplicitKey_FlagKeyPlusTargetingKey(t *testing.T) {
	resolver := newTestResolver(t, fractionalFlags)

	tests := map[string]struct {
		evalCtx map[string]any
		variant string
	}{
		"session lands on":   {map[string]any{"targetingKey": "session-a"}, "on"},
		"session lands off":  {map[string]any{"targetingKey": "session-f"}, "off"},
		"user lands off":     {map[string]any{"targetingKey": "user-9"}, "off"},
		"no targeting key":   {nil, "on"},
		"empty targetingKey": {map[string]any{"targetingKey": ""}, "on"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result := resolver.Evaluate(context.Background(), "customDiscount", tt.evalCtx)

			require.Empty(t, result.ErrorCode, "unexpected error: %s", result.ErrorMessage)
			assert.Equal(t, tt.variant, result.Variant)
			assert.Equal(t, model.TargetingMatchReason, result.Reason)
		})
	}
}

func TestFractional_NumericKey_UsesTextForm(t *testing.T) {
	resolver := newTestResolver(t, fractionalFlags)

	intKey := resolver.Evaluate(context.Background(), "accountBucket", map[string]any{"accountId": 12345})
	require.Empty(t, intKey.ErrorCode)
	assert.Equal(t, "on", intKey.Variant)

	floatKey := resolver.Evaluate(context.Background(), "accountBucket", map[string]any{"accountId": 3.5})
	require.Empty(t, floatKey.ErrorCode)
	assert.Equal(t, "off", floatKey.Variant)
}

func TestFractional_SameContext_SameBucket(t *testing.T) {
	resolver := newTestResolver(t, fractionalFlags)
	evalCtx := map[string]any{"email": "erin@example.com"}

	first := resolver.Evaluate(context.Background(), "headerColor", evalCtx)
	for i := 0; i < 100; i++ {
		require.Equal(t, first.Variant, resolver.Evaluate(context.Background(), "headerColor", evalCtx).Variant)
	}
}

func TestFractionalEvaluate_NumberWeights(t *testing.T) {
	e := FractionalEvaluator{}

	// weights arrive as json.Number when the caller decoded with UseNumber
	got := e.Evaluate([]any{
		"heidi@example.com",
		[]any{"red", json.Number("25")},
		[]any{"blue", json.Number("25")},
		[]any{"green", json.Number("25")},
		[]any{"yellow", json.Number("25")},
	}, nil)

	assert.Equal(t, "red", got)
}

func TestFractional_MalformedRules(t *testing.T) {
	tests := map[string]struct {
		rule    string
		wantErr string
	}{
		"not a list":         {`{"fractional": "junk"}`, "arguments are not a list"},
		"empty list":         {`{"fractional": []}`, "no buckets defined"},
		"key only":           {`{"fractional": [{"var": "email"}]}`, "no buckets defined"},
		"bucket not a pair":  {`{"fractional": ["k", ["on", 50], "junk"]}`, "is not a [name, weight] pair"},
		"bucket too short":   {`{"fractional": ["k", ["on"]]}`, "must hold exactly a name and a weight"},
		"name not a string":  {`{"fractional": ["k", [42, 50]]}`, "name must be a string, got integer"},
		"weight not numeric": {`{"fractional": ["k", ["on", "heavy"]]}`, "weight must be a number, got string"},
		"weight fractional":  {`{"fractional": ["k", ["on", 2.5]]}`, "is not an integer"},
		"weight negative":    {`{"fractional": ["k", ["on", -1], ["off", 2]]}`, "is negative"},
		"weights sum zero":   {`{"fractional": ["k", ["on", 0], ["off", 0]]}`, "bucket weights sum to zero"},
		"boolean key":        {`{"fractional": [true, ["on", 50]]}`, "bucketing key must be a string or a number, got boolean"},
		"no implicit key":    {`{"fractional": [["on", 50], ["off", 50]]}`, "is missing from the context"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			outcome, err := applyRule(json.RawMessage(tt.rule), []byte(`{}`))

			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFractional_MalformedRule_SurfacesAsParseError(t *testing.T) {
	config := `{
	  "flags": {
	    "zeroWeights": {
	      "state": "ENABLED",
	      "variants": { "on": true },
	      "defaultVariant": "on",
	      "targeting": { "fractional": [["on", 0]] }
	    }
	  }
	}`
	resolver := newTestResolver(t, config)

	result := resolver.Evaluate(context.Background(), "zeroWeights", nil)

	assert.Equal(t, model.ErrorReason, result.Reason)
	assert.Equal(t, model.ParseErrorCode, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "bucket weights sum to zero")
}

func TestPickBucket_Deterministic(t *testing.T) {
	buckets := []fractionalBucket{{"on", 50}, {"off", 50}}

	first := pickBucket("determinism-key", buckets, 100)
	for i := 0; i < 1000; i++ {
		require.Equal(t, first, pickBucket("determinism-key", buckets, 100))
	}
}

func TestPickBucket_SingleBucketTakesAll(t *testing.T) {
	buckets := []fractionalBucket{{"all", 1}}

	for i := 0; i < 50; i++ {
		require.Equal(t, "all", pickBucket(fmt.Sprintf("user-%d", i), buckets, 1))
	}
}

func TestPickBucket_RespectsWeightProportions(t *testing.T) {
	const keys = 2000

	halves := []fractionalBucket{{"on", 50}, {"off", 50}}
	on := 0
	for i := 0; i < keys; i++ {
		if pickBucket(fmt.Sprintf("user-%d", i), halves, 100) == "on" {
			on++
		}
	}
	assert.InDelta(t, keys/2, on, keys*0.05, "50/50 split drifted: %d/%d", on, keys)

	skewed := []fractionalBucket{{"control", 70}, {"treatment", 30}}
	control := 0
	for i := 0; i < keys; i++ {
		if pickBucket(fmt.Sprintf("user-%d", i), skewed, 100) == "control" {
			control++
		}
	}
	assert.InDelta(t, keys*70/100, control, keys*0.05, "70/30 split drifted: %d/%d", control, keys)
}

func TestPickBucket_WeightsNeedNotSumTo100(t *testing.T) {
	const keys = 2000

	thirds := []fractionalBucket{{"a", 1}, {"b", 1}, {"c", 1}}
	counts := map[string]int{}
	for i := 0; i < keys; i++ {
		counts[pickBucket(fmt.Sprintf("user-%d", i), thirds, 3)]++
	}

	for _, variant := range []string{"a", "b", "c"} {
		assert.InDelta(t, keys/3, counts[variant], keys*0.05, "uneven third for %q: %v", variant, counts)
	}
}
