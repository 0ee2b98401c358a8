// Package jsonschema validates JSON documents against a compiled JSON Schema.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled schema. It is safe for concurrent use.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema from its JSON text.
func Compile(schemaStr string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Schema{schema: schema}, nil
}

// CompileFile compiles the schema stored at path.
func CompileFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Compile(string(data))
}

// Validate checks a JSON document against the schema. A document that is not
// JSON or does not satisfy the schema yields ValidationErrors.
func (s *Schema) Validate(doc []byte) error {
	var data interface{}
	if err := json.Unmarshal(doc, &data); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	if err := s.schema.Validate(data); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return extractValidationErrors(validationErr)
		}
		return ValidationErrors{err}
	}

	return nil
}

// Validate validates a JSON string against a JSON Schema
// Returns true if the JSON is valid, false otherwise
// If there's an error in the schema or JSON parsing, it returns an error
func Validate(jsonStr, schemaStr string) (bool, error) {
	schema, err := Compile(schemaStr)
	if err != nil {
		return false, err
	}

	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}

	return schema.schema.Validate(data) == nil, nil
}

// extractValidationErrors flattens a jsonschema.ValidationError tree
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errors ValidationErrors

	if err.Message != "" && len(err.Causes) == 0 {
		errors = append(errors, fmt.Errorf("validation error at %s: %s", locationOf(err), err.Message))
	}

	for _, childErr := range err.Causes {
		errors = append(errors, extractValidationErrors(childErr)...)
	}

	return errors
}

func locationOf(err *jsonschema.ValidationError) string {
	if err.InstanceLocation == "" {
		return "/"
	}
	return err.InstanceLocation
}
