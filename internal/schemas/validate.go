// Package schemas validates documents against the JSON Schemas embedded in the binary.
package schemas

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	embedded "github.com/jonathan/webfont-splitter/schemas"
)

// ValidationError lists every field a document got wrong
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is one violation at a dotted field path
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError means validation could not run at all: the schema is
// missing or broken, or the document is not JSON.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Schema != "" {
		fmt.Fprintf(&sb, "validation against %s failed:\n", ve.Schema)
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

type compiled struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

// compiledSchemas holds one entry per embedded schema name, compiled on first use.
var compiledSchemas sync.Map

func load(name string) (*gojsonschema.Schema, error) {
	v, _ := compiledSchemas.LoadOrStore(name, &compiled{})
	c := v.(*compiled)
	c.once.Do(func() {
		data, err := embedded.FS.ReadFile(name)
		if err != nil {
			c.err = &SchemaLoadError{Path: name, Message: "schema is not embedded", Cause: err}
			return
		}
		c.schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			c.err = &SchemaLoadError{Path: name, Message: "schema does not compile", Cause: err}
		}
	})
	return c.schema, c.err
}

// Validate checks a JSON document against one of the embedded schemas,
// e.g. schemas.ReferenceData
func Validate(schemaName string, doc []byte) error {
	schema, err := load(schemaName)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &SchemaLoadError{
			Path:    schemaName,
			Message: "document could not be read",
			Cause:   err,
		}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: schemaName,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
