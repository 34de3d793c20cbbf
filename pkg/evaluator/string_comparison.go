package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/logger"
)

// Rule-language names of the string match operators.
const (
	StartsWithOperator = "starts_with"
	EndsWithOperator   = "ends_with"
)

// StringComparisonEvaluator implements the starts_with and ends_with
// operators: case-sensitive prefix and suffix tests over two operands.
// Operands may be strings, numbers (compared in their text form) or null
// (compared as the empty string); any other operand shape fails the
// evaluation.
type StringComparisonEvaluator struct {
	Logger *logger.Logger
}

// StartsWith reports whether the first operand starts with the second. An
// empty prefix matches every subject, including the empty one.
func (e StringComparisonEvaluator) StartsWith(values, _ any) any {
	subject, prefix, err := parseStringMatchArgs(values)
	if err != nil {
		e.Logger.Debug("starts_with evaluation rejected", zap.Error(err))
		raiseOperatorError(StartsWithOperator, err)
	}
	return strings.HasPrefix(subject, prefix)
}

// EndsWith reports whether the first operand ends with the second. An empty
// suffix matches every subject, including the empty one.
func (e StringComparisonEvaluator) EndsWith(values, _ any) any {
	subject, suffix, err := parseStringMatchArgs(values)
	if err != nil {
		e.Logger.Debug("ends_with evaluation rejected", zap.Error(err))
		raiseOperatorError(EndsWithOperator, err)
	}
	return strings.HasSuffix(subject, suffix)
}

func parseStringMatchArgs(values any) (string, string, error) {
	args, ok := values.([]any)
	if !ok {
		return "", "", errors.New("arguments are not a list")
	}
	if len(args) != 2 {
		return "", "", fmt.Errorf("expects exactly two arguments, got %d", len(args))
	}

	subject, err := stringOperand(args[0])
	if err != nil {
		return "", "", err
	}
	affix, err := stringOperand(args[1])
	if err != nil {
		return "", "", err
	}
	return subject, affix, nil
}

func stringOperand(value any) (string, error) {
	switch typed := value.(type) {
	case nil:
		return "", nil
	case string:
		return typed, nil
	case json.Number:
		return typed.String(), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("operand must be a string or a number, got %s", jsonTypeName(value))
	}
}
