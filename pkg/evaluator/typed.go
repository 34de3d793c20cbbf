package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pennon-io/pennon/pkg/model"
)

// Expected-type tags used in TYPE_MISMATCH messages.
const (
	typeBoolean = "boolean"
	typeString  = "string"
	typeInteger = "integer"
	typeFloat   = "float"
	typeObject  = "object"
)

// ResolveBooleanValue evaluates the flag and requires a boolean value.
func (r *Resolver) ResolveBooleanValue(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	return r.resolveTyped(ctx, flagKey, evalCtx, typeBoolean)
}

// ResolveStringValue evaluates the flag and requires a string value.
func (r *Resolver) ResolveStringValue(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	return r.resolveTyped(ctx, flagKey, evalCtx, typeString)
}

// ResolveIntValue evaluates the flag and requires a numeric value, truncating
// floating-point values toward zero.
func (r *Resolver) ResolveIntValue(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	return r.resolveTyped(ctx, flagKey, evalCtx, typeInteger)
}

// ResolveFloatValue evaluates the flag and requires a numeric value, widening
// integers to floating point.
func (r *Resolver) ResolveFloatValue(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	return r.resolveTyped(ctx, flagKey, evalCtx, typeFloat)
}

// ResolveObjectValue evaluates the flag and requires an object value.
func (r *Resolver) ResolveObjectValue(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	return r.resolveTyped(ctx, flagKey, evalCtx, typeObject)
}

// resolveTyped wraps evaluation with an expected-type assertion. Results that
// did not resolve a variant (errors, not found, disabled, fallback) pass
// through untouched so that callers see the original reason and code; only
// genuinely resolved values are checked, and on success the result carries
// the coerced value (int64 for integers, float64 for floats).
func (r *Resolver) resolveTyped(ctx context.Context, flagKey string, evalCtx map[string]any, want string) *model.EvaluationResult {
	result := r.evaluate(ctx, flagKey, evalCtx)
	if isResolved(result.Reason) {
		value, err := coerceValue(want, result.Value)
		if err != nil {
			result = &model.EvaluationResult{
				Reason:       model.ErrorReason,
				ErrorCode:    model.TypeMismatchErrorCode,
				ErrorMessage: fmt.Sprintf("flag %q: %s", flagKey, err),
			}
		} else {
			result.Value = value
		}
	}
	r.metrics.RecordEvaluation(result.Reason, result.ErrorCode)
	return result
}

// isResolved reports whether the evaluation selected an actual variant.
func isResolved(reason string) bool {
	switch reason {
	case model.StaticReason, model.DefaultReason, model.TargetingMatchReason:
		return true
	default:
		return false
	}
}

func coerceValue(want string, value any) (any, error) {
	switch want {
	case typeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case typeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case typeInteger:
		switch typed := value.(type) {
		case json.Number:
			if i, err := typed.Int64(); err == nil {
				return i, nil
			}
			if f, err := typed.Float64(); err == nil {
				return int64(math.Trunc(f)), nil
			}
		case float64:
			return int64(math.Trunc(typed)), nil
		case int:
			return int64(typed), nil
		case int64:
			return typed, nil
		}
	case typeFloat:
		switch typed := value.(type) {
		case json.Number:
			if f, err := typed.Float64(); err == nil {
				return f, nil
			}
		case float64:
			return typed, nil
		case int:
			return float64(typed), nil
		case int64:
			return float64(typed), nil
		}
	case typeObject:
		if o, ok := value.(map[string]any); ok {
			return o, nil
		}
	}
	return nil, fmt.Errorf("expected %s value, got %s", want, jsonTypeName(value))
}
