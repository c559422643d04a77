package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalschemas "github.com/jonathan/webfont-splitter/internal/schemas"
	"github.com/jonathan/webfont-splitter/schemas"
)

var allSchemas = []string{
	schemas.ReferenceData,
	schemas.FallbackManifest,
	schemas.Config,
}

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	for _, schemaFile := range allSchemas {
		t.Run(schemaFile, func(t *testing.T) {
			data, err := schemas.FS.ReadFile(schemaFile)
			require.NoError(t, err, "schema should be embedded")

			var v map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &v), "schema file should be valid JSON")

			_, hasSchema := v["$schema"]
			_, hasType := v["type"]
			assert.True(t, hasSchema && hasType, "schema should declare $schema and type")
		})
	}
}

func TestReferenceDataSchema(t *testing.T) {
	valid := `{"name": "t", "buckets": [{"name": "latin", "priority": 1, "unicode_range": "U+41-5A"}]}`
	assert.NoError(t, internalschemas.Validate(schemas.ReferenceData, []byte(valid)))

	missingRange := `{"name": "t", "buckets": [{"name": "latin", "priority": 1}]}`
	err := internalschemas.Validate(schemas.ReferenceData, []byte(missingRange))
	require.Error(t, err)
	var vErr *internalschemas.ValidationError
	assert.ErrorAs(t, err, &vErr)

	badName := `{"name": "t", "buckets": [{"name": "has space", "priority": 1, "unicode_range": "U+41"}]}`
	assert.Error(t, internalschemas.Validate(schemas.ReferenceData, []byte(badName)))
}

func TestFallbackManifestSchema(t *testing.T) {
	valid := `{"family": "Fallback", "sources": [{"name": "Noto Sans", "file": "NotoSans-Regular.ttf", "unicode_range": "U+0-FF"}]}`
	assert.NoError(t, internalschemas.Validate(schemas.FallbackManifest, []byte(valid)))

	empty := `{"family": "Fallback", "sources": []}`
	assert.Error(t, internalschemas.Validate(schemas.FallbackManifest, []byte(empty)))
}

func TestConfigSchema(t *testing.T) {
	assert.NoError(t, internalschemas.Validate(schemas.Config, []byte(`{"mode": "static", "quality": 11}`)))
	assert.Error(t, internalschemas.Validate(schemas.Config, []byte(`{"mode": "fancy"}`)))
	assert.Error(t, internalschemas.Validate(schemas.Config, []byte(`{"unknown_key": 1}`)))
}
