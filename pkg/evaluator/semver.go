package evaluator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	"go.uber.org/zap"

	"github.com/pennon-io/pennon/pkg/logger"
)

// SemVerOperator is the rule-language name of the semantic version
// comparison, e.g. {"sem_ver": [{"var": "appVersion"}, ">=", "2.1.0"]}.
const SemVerOperator = "sem_ver"

// SemVerComparisonEvaluator implements the sem_ver operator. Both versions
// are parsed leniently: a leading v/V is stripped and missing minor/patch
// components default to zero, so "v1.2" compares as "1.2.0".
type SemVerComparisonEvaluator struct {
	Logger *logger.Logger
}

// Evaluate compares two version operands. Arguments are (version, operator,
// version) where the operator token is one of =, !=, <, <=, >, >=, ~ or ^.
// Malformed arguments fail the evaluation with a descriptive error.
func (e SemVerComparisonEvaluator) Evaluate(values, _ any) any {
	version, operator, target, err := parseSemVerArgs(values)
	if err != nil {
		e.Logger.Debug("sem_ver evaluation rejected", zap.Error(err))
		raiseOperatorError(SemVerOperator, err)
	}
	return compareSemVer(version, operator, target)
}

func parseSemVerArgs(values any) (semver.Version, string, semver.Version, error) {
	var none semver.Version

	args, ok := values.([]any)
	if !ok {
		return none, "", none, errors.New("arguments are not a list")
	}
	if len(args) != 3 {
		return none, "", none, fmt.Errorf("expects exactly three arguments (version, operator, version), got %d", len(args))
	}

	rawVersion, ok := args[0].(string)
	if !ok {
		return none, "", none, fmt.Errorf("version operand must be a string, got %s", jsonTypeName(args[0]))
	}
	operator, ok := args[1].(string)
	if !ok {
		return none, "", none, fmt.Errorf("comparison operator must be a string, got %s", jsonTypeName(args[1]))
	}
	rawTarget, ok := args[2].(string)
	if !ok {
		return none, "", none, fmt.Errorf("version operand must be a string, got %s", jsonTypeName(args[2]))
	}

	version, err := parseVersion(rawVersion)
	if err != nil {
		return none, "", none, err
	}
	target, err := parseVersion(rawTarget)
	if err != nil {
		return none, "", none, err
	}

	return version, operator, target, nil
}

// parseVersion accepts major[.minor[.patch]][-prerelease][+build] with an
// optional leading v or V. Missing minor and patch components default to 0,
// which is laxer than strict semver but required for targeting rules that
// compare truncated versions such as "1.2".
func parseVersion(raw string) (semver.Version, error) {
	var version semver.Version

	s := strings.TrimSpace(raw)
	if s == "" {
		return version, errors.New("version string is empty")
	}
	if s[0] == 'v' || s[0] == 'V' {
		s = s[1:]
	}

	core := s
	var build, prerelease string
	if i := strings.IndexByte(core, '+'); i >= 0 {
		core, build = core[:i], core[i+1:]
	}
	if i := strings.IndexByte(core, '-'); i >= 0 {
		core, prerelease = core[:i], core[i+1:]
	}

	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return version, fmt.Errorf("version %q has more than three numeric components", raw)
	}
	numbers := [3]uint64{}
	for i, part := range parts {
		number, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return version, fmt.Errorf("version %q: component %q is not a non-negative integer", raw, part)
		}
		numbers[i] = number
	}
	version.Major, version.Minor, version.Patch = numbers[0], numbers[1], numbers[2]

	if prerelease != "" {
		for _, id := range strings.Split(prerelease, ".") {
			pr, err := semver.NewPRVersion(id)
			if err != nil {
				return version, fmt.Errorf("version %q: invalid prerelease identifier %q", raw, id)
			}
			version.Pre = append(version.Pre, pr)
		}
	}
	for _, id := range strings.Split(build, ".") {
		if id == "" {
			continue
		}
		meta, err := semver.NewBuildVersion(id)
		if err != nil {
			return version, fmt.Errorf("version %q: invalid build identifier %q", raw, id)
		}
		version.Build = append(version.Build, meta)
	}

	return version, nil
}

// compareSemVer applies the operator with semver precedence rules: build
// metadata is ignored and a release outranks any of its prereleases. Caret
// and tilde follow the npm ranges: ^ pins the leftmost non-zero component of
// the target, ~ pins the target's major and minor.
func compareSemVer(version semver.Version, operator string, target semver.Version) any {
	switch operator {
	case "=":
		return version.EQ(target)
	case "!=":
		return version.NE(target)
	case "<":
		return version.LT(target)
	case "<=":
		return version.LTE(target)
	case ">":
		return version.GT(target)
	case ">=":
		return version.GTE(target)
	case "~":
		return version.Major == target.Major && version.Minor == target.Minor && version.GTE(target)
	case "^":
		if target.Major > 0 {
			return version.Major == target.Major && version.GTE(target)
		}
		if target.Minor > 0 {
			return version.Major == 0 && version.Minor == target.Minor && version.GTE(target)
		}
		return version.Major == 0 && version.Minor == 0 && version.Patch == target.Patch && version.GTE(target)
	default:
		raiseOperatorError(SemVerOperator, fmt.Errorf("unknown operator %q", operator))
		return nil
	}
}
