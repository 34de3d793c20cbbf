// Package evaluator resolves flag values for evaluation contexts.
//
// Targeting rules are JsonLogic expressions extended with four custom
// operators: fractional, starts_with, ends_with and sem_ver. A rule selects
// a variant by resolving to its name; resolving to null defers to the flag's
// default variant.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diegoholiveira/jsonlogic/v3"
	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/model"
	"github.com/pennon-io/pennon/pkg/store"
	"github.com/pennon-io/pennon/pkg/telemetry"
)

// Context keys injected during enrichment. Targeting rules written against
// this engine (and its ports in other languages) reference these names
// directly, e.g. {"var": "$pennon.flagKey"}.
const (
	reservedPropertiesKey = "$pennon"
	flagKeyPropertyKey    = "flagKey"
	timestampPropertyKey  = "timestamp"
	targetingKeyKey       = "targetingKey"
)

// Resolver evaluates flags from a store against caller contexts. One
// instance is safe for concurrent use and is meant to be reused across
// calls; it holds no per-evaluation state.
type Resolver struct {
	store   store.IStore
	logger  *logger.Logger
	metrics *telemetry.Metrics
	now     func() int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOperator registers a custom JsonLogic operator. The operator registry
// is shared process-wide by the underlying engine; re-registering a name
// replaces the previous operator.
func WithOperator(name string, op func(values, data any) any) Option {
	return func(_ *Resolver) {
		jsonlogic.AddOperator(name, op)
	}
}

// WithClock sets the clock used for the injected evaluation timestamp. A nil
// clock makes the timestamp 0, which rules may test for as "time unknown".
func WithClock(now func() int64) Option {
	return func(r *Resolver) { r.now = now }
}

// WithMetrics attaches evaluation instrumentation.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver builds a Resolver reading flags from the given store, with the
// four domain operators registered.
func NewResolver(log *logger.Logger, flags store.IStore, opts ...Option) *Resolver {
	log = log.WithFields(zap.String("component", "evaluator"))

	r := &Resolver{
		store:  flags,
		logger: log,
		now:    func() int64 { return time.Now().Unix() },
	}

	fractional := FractionalEvaluator{Logger: log}
	strcmp := StringComparisonEvaluator{Logger: log}
	semverCmp := SemVerComparisonEvaluator{Logger: log}

	defaults := []Option{
		WithOperator(FractionalOperator, fractional.Evaluate),
		WithOperator(StartsWithOperator, strcmp.StartsWith),
		WithOperator(EndsWithOperator, strcmp.EndsWith),
		WithOperator(SemVerOperator, semverCmp.Evaluate),
	}
	for _, opt := range append(defaults, opts...) {
		opt(r)
	}

	return r
}

// Evaluate resolves the flag under flagKey against the evaluation context.
// It never panics and never returns nil; failures are encoded in the result.
func (r *Resolver) Evaluate(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	result := r.evaluate(ctx, flagKey, evalCtx)
	r.metrics.RecordEvaluation(result.Reason, result.ErrorCode)
	return result
}

func (r *Resolver) evaluate(ctx context.Context, flagKey string, evalCtx map[string]any) *model.EvaluationResult {
	flag, setMetadata, ok := r.store.Get(ctx, flagKey)
	if !ok {
		r.logger.Debug("flag not found", zap.String("flag", flagKey))
		return &model.EvaluationResult{
			Reason:       model.FlagNotFoundReason,
			ErrorCode:    model.FlagNotFoundErrorCode,
			ErrorMessage: fmt.Sprintf("no flag found for key %q", flagKey),
			FlagMetadata: mergeMetadata(setMetadata, nil),
		}
	}

	metadata := mergeMetadata(setMetadata, flag.Metadata)

	if flag.State == model.StateDisabled {
		return &model.EvaluationResult{
			Reason:       model.DisabledReason,
			ErrorCode:    model.FlagNotFoundErrorCode,
			ErrorMessage: fmt.Sprintf("flag %q is disabled", flagKey),
			FlagMetadata: metadata,
		}
	}

	if !hasTargeting(flag.Targeting) {
		return r.resolveDefault(&flag, model.StaticReason, metadata)
	}

	return r.evaluateTargeting(&flag, evalCtx, metadata)
}

// resolveDefault serves the flag's default variant with the given reason, or
// signals fallback when the flag names none.
func (r *Resolver) resolveDefault(flag *model.Flag, reason string, metadata model.Metadata) *model.EvaluationResult {
	if flag.DefaultVariant == "" {
		return &model.EvaluationResult{
			Reason:       model.FallbackReason,
			ErrorCode:    model.FlagNotFoundErrorCode,
			ErrorMessage: fmt.Sprintf("flag %q has no default variant", flag.Key),
			FlagMetadata: metadata,
		}
	}

	value, ok := flag.Variants[flag.DefaultVariant]
	if !ok {
		return errorResult(model.GeneralErrorCode,
			fmt.Sprintf("default variant %q of flag %q is not defined in its variants", flag.DefaultVariant, flag.Key))
	}

	return &model.EvaluationResult{
		Value:        value,
		Variant:      flag.DefaultVariant,
		Reason:       reason,
		FlagMetadata: metadata,
	}
}

func (r *Resolver) evaluateTargeting(flag *model.Flag, evalCtx map[string]any, metadata model.Metadata) *model.EvaluationResult {
	enriched := r.enrichContext(flag.Key, evalCtx)

	data, err := json.Marshal(enriched)
	if err != nil {
		return errorResult(model.GeneralErrorCode,
			fmt.Sprintf("serializing evaluation context for flag %q: %v", flag.Key, err))
	}

	outcome, err := applyRule(flag.Targeting, data)
	if err != nil {
		r.logger.Error("targeting rule evaluation failed",
			zap.String("flag", flag.Key), zap.Error(err))
		return errorResult(model.ParseErrorCode,
			fmt.Sprintf("evaluating targeting rule of flag %q: %v", flag.Key, err))
	}

	// a null outcome means the rule declined to select a variant
	if outcome == nil {
		return r.resolveDefault(flag, model.DefaultReason, metadata)
	}

	variant, ok := variantName(outcome)
	if !ok {
		return errorResult(model.GeneralErrorCode,
			fmt.Sprintf("targeting rule of flag %q resolved to a value of type %s instead of a variant name",
				flag.Key, jsonTypeName(outcome)))
	}

	if variant == "" {
		if flag.DefaultVariant == "" {
			return &model.EvaluationResult{
				Reason:       model.FallbackReason,
				ErrorCode:    model.FlagNotFoundErrorCode,
				ErrorMessage: fmt.Sprintf("targeting rule of flag %q selected no variant and the flag has no default", flag.Key),
				FlagMetadata: metadata,
			}
		}
		return errorResult(model.GeneralErrorCode,
			fmt.Sprintf("targeting rule of flag %q resolved to an empty variant name", flag.Key))
	}

	value, ok := flag.Variants[variant]
	if !ok {
		return errorResult(model.GeneralErrorCode,
			fmt.Sprintf("targeting rule of flag %q resolved to unknown variant %q", flag.Key, variant))
	}

	return &model.EvaluationResult{
		Value:        value,
		Variant:      variant,
		Reason:       model.TargetingMatchReason,
		FlagMetadata: metadata,
	}
}

// enrichContext copies the caller's context and injects the engine
// properties referenced by targeting rules. The copy is shallow; values are
// shared with the caller for the duration of the evaluation.
func (r *Resolver) enrichContext(flagKey string, evalCtx map[string]any) map[string]any {
	enriched := make(map[string]any, len(evalCtx)+2)
	for key, value := range evalCtx {
		enriched[key] = value
	}

	if _, ok := enriched[targetingKeyKey]; !ok {
		enriched[targetingKeyKey] = ""
	}

	var timestamp int64
	if r.now != nil {
		timestamp = r.now()
	}
	enriched[reservedPropertiesKey] = map[string]any{
		flagKeyPropertyKey:   flagKey,
		timestampPropertyKey: timestamp,
	}

	return enriched
}

// applyRule evaluates a JsonLogic rule against the serialized context. The
// custom operator contract has no error return; operators abort by panicking
// with an *operatorError, which is recovered here so that failures never
// escape the evaluation boundary.
func applyRule(rule json.RawMessage, data []byte) (outcome any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if opErr, ok := rec.(*operatorError); ok {
				err = opErr
				return
			}
			err = fmt.Errorf("rule evaluation panicked: %v", rec)
		}
	}()

	var result bytes.Buffer
	if applyErr := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader(data), &result); applyErr != nil {
		return nil, applyErr
	}

	dec := json.NewDecoder(&result)
	dec.UseNumber()
	if decodeErr := dec.Decode(&outcome); decodeErr != nil {
		return nil, fmt.Errorf("decoding rule result: %w", decodeErr)
	}

	return outcome, nil
}

// variantName coerces a rule outcome into a variant name: strings are used
// verbatim, numbers and booleans take their JSON text form.
func variantName(outcome any) (string, bool) {
	switch typed := outcome.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

// hasTargeting reports whether the flag carries a non-trivial targeting
// rule. An absent rule, an empty object and JSON null are all equivalent to
// no targeting.
func hasTargeting(targeting json.RawMessage) bool {
	trimmed := bytes.TrimSpace(targeting)
	switch string(trimmed) {
	case "", "null":
		return false
	}
	if trimmed[0] == '{' {
		var rule map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &rule); err == nil && len(rule) == 0 {
			return false
		}
	}
	return true
}

// mergeMetadata overlays flag metadata on flag set metadata; flag keys win.
// Set keys beginning with $ are engine bookkeeping and are filtered out. An
// empty merge yields nil so that "no metadata" and "empty metadata" are
// indistinguishable in results.
func mergeMetadata(setMetadata, flagMetadata model.Metadata) model.Metadata {
	merged := model.Metadata{}
	for key, value := range setMetadata {
		if strings.HasPrefix(key, "$") {
			continue
		}
		merged[key] = value
	}
	for key, value := range flagMetadata {
		merged[key] = value
	}

	if len(merged) == 0 {
		return nil
	}
	return merged
}

func errorResult(code, message string) *model.EvaluationResult {
	return &model.EvaluationResult{
		Reason:       model.ErrorReason,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
