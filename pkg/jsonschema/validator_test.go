package jsonschema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const eventSchema = `{
	"type": "object",
	"properties": {
		"id": { "type": "integer" },
		"name": { "type": "string" }
	},
	"required": ["id", "name"]
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		schema        string
		json          string
		expectedValid bool
		expectedError bool
	}{
		{
			name:          "Valid object",
			schema:        eventSchema,
			json:          `{"id": 1, "name": "start"}`,
			expectedValid: true,
		},
		{
			name:   "Invalid - missing required property",
			schema: eventSchema,
			json:   `{"id": 1}`,
		},
		{
			name:   "Invalid - wrong type",
			schema: eventSchema,
			json:   `{"id": "one", "name": "start"}`,
		},
		{
			name:          "Invalid schema",
			schema:        `{"type": "invalid-type"}`,
			json:          `{}`,
			expectedError: true,
		},
		{
			name:          "Invalid JSON",
			schema:        `{"type": "object"}`,
			json:          `{ invalid json }`,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := Validate(tt.json, tt.schema)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Validate() error = %v, expectedError %v", err, tt.expectedError)
			}
			if valid != tt.expectedValid {
				t.Errorf("Validate() = %v, want %v", valid, tt.expectedValid)
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	schema, err := Compile(eventSchema)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if err := schema.Validate([]byte(`{"id": 7, "name": "tick"}`)); err != nil {
		t.Errorf("Validate(valid) = %v, want nil", err)
	}

	err = schema.Validate([]byte(`{"id": "x"}`))
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Validate(invalid) error type = %T, want ValidationErrors", err)
	}
	if len(verrs) < 2 {
		t.Errorf("len(ValidationErrors) = %d, want one per failure: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "/id") {
		t.Errorf("Validate(invalid) = %q, want it to locate /id", err.Error())
	}

	if err := schema.Validate([]byte("hello")); err == nil {
		t.Error("Validate(non-JSON) = nil, want error")
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(eventSchema), 0644); err != nil {
		t.Fatalf("Failed to write schema: %v", err)
	}

	schema, err := CompileFile(path)
	if err != nil {
		t.Fatalf("CompileFile() error = %v", err)
	}
	if err := schema.Validate([]byte(`{"id": 1, "name": "a"}`)); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	if _, err := CompileFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("CompileFile(missing) = nil error, want error")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "" {
		t.Errorf("empty.Error() = %q, want empty", empty.Error())
	}
}
