package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_ValidateObject(t *testing.T) {
	t.Parallel()

	schema := ObjectSchema(map[string]*JSONSchema{
		"name":  StringSchema("workflow name"),
		"count": IntegerSchema("how many"),
	}, "name")

	require.NoError(t, schema.Validate(map[string]any{"name": "wf", "count": float64(3)}))

	err := schema.Validate(map[string]any{"count": float64(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required parameter "name"`)

	err = schema.Validate(map[string]any{"name": 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parameter "name"`)

	// Unknown properties are allowed.
	assert.NoError(t, schema.Validate(map[string]any{"name": "wf", "extra": true}))
}

func TestJSONSchema_ValidateInteger(t *testing.T) {
	t.Parallel()

	schema := IntegerSchema("id")

	// JSON decodes all numbers to float64; whole floats are integers.
	assert.NoError(t, schema.Validate(float64(5)))
	assert.NoError(t, schema.Validate(5))
	assert.Error(t, schema.Validate(5.5))
	assert.Error(t, schema.Validate("5"))
}

func TestJSONSchema_ValidateEnum(t *testing.T) {
	t.Parallel()

	schema := &JSONSchema{
		Type: SchemaTypeString,
		Enum: []any{"active", "inactive", "draft"},
	}

	assert.NoError(t, schema.Validate("draft"))
	err := schema.Validate("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not one of the allowed values")
}

func TestJSONSchema_ValidateArray(t *testing.T) {
	t.Parallel()

	schema := &JSONSchema{Type: SchemaTypeArray, Items: StringSchema("tag")}

	assert.NoError(t, schema.Validate([]any{"a", "b"}))

	err := schema.Validate([]any{"a", 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")

	assert.Error(t, schema.Validate("not an array"))
}

func TestJSONSchema_NilValuesPass(t *testing.T) {
	t.Parallel()

	var schema *JSONSchema
	assert.NoError(t, schema.Validate(map[string]any{}))

	// A nil value against an untyped schema is accepted.
	assert.NoError(t, (&JSONSchema{}).Validate(nil))
	assert.NoError(t, StringSchema("x").Validate(nil))
}
