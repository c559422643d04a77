package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedded "github.com/jonathan/webfont-splitter/schemas"
)

func TestValidate_ReferenceData(t *testing.T) {
	doc := `{"name": "mini", "version": 2, "buckets": [
		{"name": "latin", "priority": 10, "unicode_range": "U+41-5A"},
		{"name": "digits", "priority": 20, "unicode_range": "U+30-39"}
	]}`
	assert.NoError(t, Validate(embedded.ReferenceData, []byte(doc)))
}

func TestValidate_MissingField(t *testing.T) {
	err := Validate(embedded.ReferenceData, []byte(`{"buckets": []}`))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Equal(t, embedded.ReferenceData, validationErr.Schema)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidate_NestedFieldPath(t *testing.T) {
	doc := `{"name": "mini", "buckets": [{"name": "latin", "priority": "high", "unicode_range": "U+41"}]}`
	err := Validate(embedded.ReferenceData, []byte(doc))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	var fields []string
	for _, fe := range validationErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "buckets.0.priority")
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope.schema.json", []byte(`{}`))
	require.Error(t, err)

	loadErr, ok := err.(*SchemaLoadError)
	require.True(t, ok)
	assert.Equal(t, "nope.schema.json", loadErr.Path)
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(embedded.Config, []byte(`{"mode": `))
	require.Error(t, err)
	_, ok := err.(*SchemaLoadError)
	assert.True(t, ok, "malformed input surfaces as a load error")
}

func TestValidate_EveryEmbeddedSchemaCompiles(t *testing.T) {
	for _, name := range []string{embedded.ReferenceData, embedded.FallbackManifest, embedded.Config} {
		t.Run(name, func(t *testing.T) {
			_, err := load(name)
			assert.NoError(t, err)
		})
	}
}

func TestValidate_FallbackManifest(t *testing.T) {
	doc := `{"family": "Fallback", "sources": [
		{"name": "Noto Sans", "file": "NotoSans.ttf", "unicode_range": "U+0-24F"}
	]}`
	assert.NoError(t, Validate(embedded.FallbackManifest, []byte(doc)))
}

func TestValidate_ConfigRejectsOutOfRange(t *testing.T) {
	assert.NoError(t, Validate(embedded.Config, []byte(`{"mode": "static", "workers": 4}`)))

	err := Validate(embedded.Config, []byte(`{"workers": -1}`))
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "workers", validationErr.Errors[0].Field)
}

func TestValidate_RepeatedCallsReuseSchema(t *testing.T) {
	doc := []byte(`{"name": "mini", "buckets": []}`)
	for i := 0; i < 3; i++ {
		assert.NoError(t, Validate(embedded.ReferenceData, doc))
	}
	v, ok := compiledSchemas.Load(embedded.ReferenceData)
	require.True(t, ok)
	assert.NotNil(t, v.(*compiled).schema)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Schema: "x.schema.json",
		Errors: []FieldError{
			{Field: "(root)", Message: "name is required"},
			{Field: "buckets.0", Message: "invalid"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "validation against x.schema.json failed")
	assert.Contains(t, msg, "1. (root): name is required")
	assert.Contains(t, msg, "2. buckets.0: invalid")
}
