package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
)

// operatorError carries a custom-operator failure out of a JsonLogic
// evaluation. The operator signature has no error return, so operators panic
// with one and applyRule recovers it at the evaluation boundary; it never
// crosses into caller code.
type operatorError struct {
	operator string
	err      error
}

func (e *operatorError) Error() string {
	return fmt.Sprintf("%s: %s", e.operator, e.err)
}

func (e *operatorError) Unwrap() error {
	return e.err
}

func raiseOperatorError(operator string, err error) {
	panic(&operatorError{operator: operator, err: err})
}

// jsonTypeName reports the JSON type tag of a decoded value, distinguishing
// integral from fractional numbers.
func jsonTypeName(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		if _, err := typed.Int64(); err == nil {
			return "integer"
		}
		return "float"
	case float64:
		if typed == math.Trunc(typed) {
			return "integer"
		}
		return "float"
	case int, int64:
		return "integer"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
