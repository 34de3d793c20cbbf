package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/logger"
)

// FractionalOperator is the rule-language name of the weighted bucketing
// operator, e.g. {"fractional": [{"var": "email"}, ["on", 50], ["off", 50]]}.
const FractionalOperator = "fractional"

// FractionalEvaluator implements the fractional operator: a deterministic
// assignment of a bucketing key to one of several weighted buckets. The same
// key and bucket list always select the same bucket, across processes and
// across ports of this engine in other languages; the assignment hashes the
// key with 32-bit MurmurHash3 (seed 0) and maps it onto the cumulative weight
// ranges.
type FractionalEvaluator struct {
	Logger *logger.Logger
}

type fractionalBucket struct {
	variant string
	weight  int64
}

// Evaluate selects a bucket. The optional first argument is the bucketing
// key (a string, or a number taken in its text form); without it the key is
// the flag key concatenated with the context's targetingKey. The remaining
// arguments are [name, weight] pairs with non-negative integer weights.
// Malformed buckets, a zero total weight or a missing fallback key fail the
// evaluation with a descriptive error instead of selecting a default.
func (e FractionalEvaluator) Evaluate(values, data any) any {
	key, buckets, total, err := parseFractionalArgs(values, data)
	if err != nil {
		e.Logger.Debug("fractional evaluation rejected", zap.Error(err))
		raiseOperatorError(FractionalOperator, err)
	}
	return pickBucket(key, buckets, total)
}

func parseFractionalArgs(values, data any) (string, []fractionalBucket, int64, error) {
	args, ok := values.([]any)
	if !ok {
		return "", nil, 0, errors.New("arguments are not a list")
	}
	if len(args) == 0 {
		return "", nil, 0, errors.New("no buckets defined")
	}

	var key string
	switch first := args[0].(type) {
	case string:
		key = first
		args = args[1:]
	case json.Number:
		key = first.String()
		args = args[1:]
	case float64:
		key = strconv.FormatFloat(first, 'f', -1, 64)
		args = args[1:]
	case []any:
		// no explicit key; every argument is a bucket
		implicit, err := implicitBucketKey(data)
		if err != nil {
			return "", nil, 0, err
		}
		key = implicit
	default:
		return "", nil, 0, fmt.Errorf("bucketing key must be a string or a number, got %s", jsonTypeName(args[0]))
	}

	if len(args) == 0 {
		return "", nil, 0, errors.New("no buckets defined")
	}

	buckets := make([]fractionalBucket, 0, len(args))
	var total int64
	for i, raw := range args {
		pair, ok := raw.([]any)
		if !ok {
			return "", nil, 0, fmt.Errorf("bucket at position %d is not a [name, weight] pair", i)
		}
		if len(pair) != 2 {
			return "", nil, 0, fmt.Errorf("bucket at position %d must hold exactly a name and a weight", i)
		}
		variant, ok := pair[0].(string)
		if !ok {
			return "", nil, 0, fmt.Errorf("bucket at position %d: name must be a string, got %s", i, jsonTypeName(pair[0]))
		}
		weight, err := bucketWeight(pair[1])
		if err != nil {
			return "", nil, 0, fmt.Errorf("bucket %q: %w", variant, err)
		}
		total += weight
		buckets = append(buckets, fractionalBucket{variant: variant, weight: weight})
	}
	if total == 0 {
		return "", nil, 0, errors.New("bucket weights sum to zero")
	}

	return key, buckets, total, nil
}

func bucketWeight(raw any) (int64, error) {
	var weight int64
	switch typed := raw.(type) {
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, fmt.Errorf("weight %s is not an integer", typed.String())
		}
		weight = parsed
	case float64:
		if math.Trunc(typed) != typed {
			return 0, fmt.Errorf("weight %v is not an integer", typed)
		}
		weight = int64(typed)
	default:
		return 0, fmt.Errorf("weight must be a number, got %s", jsonTypeName(raw))
	}
	if weight < 0 {
		return 0, fmt.Errorf("weight %d is negative", weight)
	}
	return weight, nil
}

// implicitBucketKey derives the bucketing key from the enriched evaluation
// context: the current flag's key concatenated with the targeting key. Both
// are injected by the resolver before every targeting evaluation, so they
// are only missing when the operator runs outside a flag evaluation.
func implicitBucketKey(data any) (string, error) {
	evalCtx, ok := data.(map[string]any)
	if !ok {
		return "", errors.New("no bucketing key supplied and the evaluation context is not an object")
	}
	properties, ok := evalCtx[reservedPropertiesKey].(map[string]any)
	if !ok {
		return "", fmt.Errorf("no bucketing key supplied and %q is missing from the context", reservedPropertiesKey)
	}
	flagKey, ok := properties[flagKeyPropertyKey].(string)
	if !ok {
		return "", errors.New("no bucketing key supplied and the flag key is missing from the context")
	}
	targetingKey, ok := evalCtx[targetingKeyKey].(string)
	if !ok {
		return "", errors.New("no bucketing key supplied and no targetingKey in the context")
	}
	return flagKey + targetingKey, nil
}

// pickBucket hashes the key into a percentage of the int32 range and walks
// the cumulative weight distribution. The scaled hash of MinInt32 lands
// marginally above 100, so a final fallback to the last bucket keeps the
// mapping total.
func pickBucket(key string, buckets []fractionalBucket, total int64) string {
	hash := int32(murmur3.StringSum32(key))
	percentage := math.Abs(float64(hash)) / math.MaxInt32 * 100

	cumulative := float64(0)
	for _, b := range buckets {
		cumulative += float64(b.weight) / float64(total) * 100
		if percentage < cumulative {
			return b.variant
		}
	}
	return buckets[len(buckets)-1].variant
}
