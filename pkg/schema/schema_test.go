package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()

	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidate_ConformingDocument(t *testing.T) {
	v := newTestValidator(t)

	issues := v.Validate([]byte(`{
	  "$schema": "https://pennon.io/schema/flags.json",
	  "$evaluators": {
	    "isAdmin": { "==": [{ "var": "role" }, "admin"] }
	  },
	  "flags": {
	    "myFlag": {
	      "state": "ENABLED",
	      "variants": { "on": true, "off": false },
	      "defaultVariant": "on",
	      "targeting": { "if": [{ "$ref": "isAdmin" }, "on", null] },
	      "metadata": { "owner": "growth", "rollout": 50, "sticky": true }
	    }
	  },
	  "metadata": { "flagSetVersion": "v1" }
	}`))

	assert.Empty(t, issues)
}

func TestValidate_MissingFlags(t *testing.T) {
	v := newTestValidator(t)

	issues := v.Validate([]byte(`{"metadata": {}}`))

	require.NotEmpty(t, issues)
	assert.Contains(t, Join(issues), "flags")
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	v := newTestValidator(t)

	issues := v.Validate([]byte(`{
	  "flags": {
	    "badState": { "state": "SOMETIMES", "variants": {} },
	    "noVariants": { "state": "ENABLED" }
	  }
	}`))

	assert.GreaterOrEqual(t, len(issues), 2)
	for _, issue := range issues {
		assert.NotEmpty(t, issue.Path)
		assert.NotEmpty(t, issue.Message)
	}
}

func TestValidate_MetadataValuesMustBeScalars(t *testing.T) {
	v := newTestValidator(t)

	issues := v.Validate([]byte(`{
	  "flags": {},
	  "metadata": { "nested": { "not": "allowed" } }
	}`))

	assert.NotEmpty(t, issues)
}

func TestValidate_NotJSON(t *testing.T) {
	v := newTestValidator(t)

	issues := v.Validate([]byte(`{{{{`))

	require.Len(t, issues, 1)
	assert.Equal(t, "(root)", issues[0].Path)
}

func TestJoin(t *testing.T) {
	issues := []Issue{
		{Path: "flags.a.state", Message: "must be one of"},
		{Path: "flags.b", Message: "variants is required"},
	}

	assert.Equal(t, "flags.a.state: must be one of; flags.b: variants is required", Join(issues))
	assert.Empty(t, Join(nil))
}
