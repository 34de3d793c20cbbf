// Package schema validates raw flag configuration documents against the
// embedded JSON schema before they are parsed.
package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed flags_schema.json
var flagsSchema string

// Issue is a single schema violation.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validator checks a raw configuration document. An empty result means the
// document conforms.
type Validator interface {
	Validate(doc []byte) []Issue
}

// JSONSchemaValidator validates documents against the embedded flag
// configuration schema.
type JSONSchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*JSONSchemaValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(flagsSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling flag configuration schema: %w", err)
	}
	return &JSONSchemaValidator{schema: compiled}, nil
}

// Validate reports every schema violation in the document. A document that
// is not valid JSON at all yields a single issue at the document root.
func (v *JSONSchemaValidator) Validate(doc []byte) []Issue {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return []Issue{{Path: "(root)", Message: err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		issues = append(issues, Issue{
			Path:    resultErr.Field(),
			Message: resultErr.Description(),
		})
	}
	return issues
}

// Join renders issues as a single semicolon-separated string for error
// messages and logs.
func Join(issues []Issue) string {
	out := ""
	for i, issue := range issues {
		if i > 0 {
			out += "; "
		}
		out += issue.String()
	}
	return out
}
