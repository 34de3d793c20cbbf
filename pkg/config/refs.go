package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// resolveRefs substitutes every {"$ref": "<name>"} node in a targeting rule
// with the body of the named evaluator from the document's $evaluators
// object. Evaluator bodies may themselves contain references; cycles and
// references to undefined names are errors. Without an $evaluators object no
// substitution pass runs and $ref nodes are kept verbatim. The rule is
// re-serialized after substitution, so stored targeting is always in
// canonical form.
func resolveRefs(targeting json.RawMessage, evaluators map[string]json.RawMessage) (json.RawMessage, error) {
	if len(evaluators) == 0 {
		return targeting, nil
	}

	dec := json.NewDecoder(bytes.NewReader(targeting))
	dec.UseNumber()

	var rule any
	if err := dec.Decode(&rule); err != nil {
		return nil, fmt.Errorf("parsing targeting rule: %w", err)
	}

	resolved, err := substituteRefs(rule, evaluators, map[string]bool{})
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("serializing resolved targeting rule: %w", err)
	}
	return out, nil
}

func substituteRefs(node any, evaluators map[string]json.RawMessage, active map[string]bool) (any, error) {
	switch typed := node.(type) {
	case map[string]any:
		if name, ok := refName(typed); ok {
			return expandRef(name, evaluators, active)
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			resolved, err := substituteRefs(value, evaluators, active)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			resolved, err := substituteRefs(value, evaluators, active)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return node, nil
	}
}

func expandRef(name string, evaluators map[string]json.RawMessage, active map[string]bool) (any, error) {
	body, defined := evaluators[name]
	if !defined {
		return nil, fmt.Errorf("targeting references undefined evaluator %q", name)
	}
	if active[name] {
		return nil, fmt.Errorf("evaluator %q is part of a reference cycle", name)
	}
	active[name] = true
	// the same evaluator may legitimately appear again in a sibling branch
	defer delete(active, name)

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing evaluator %q: %w", name, err)
	}

	return substituteRefs(parsed, evaluators, active)
}

// refName reports whether the object is a pure reference node, i.e. a
// single-key object of the form {"$ref": "<name>"}.
func refName(obj map[string]any) (string, bool) {
	if len(obj) != 1 {
		return "", false
	}
	raw, ok := obj["$ref"]
	if !ok {
		return "", false
	}
	name, ok := raw.(string)
	return name, ok
}
