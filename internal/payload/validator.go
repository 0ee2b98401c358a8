package payload

import (
	"github.com/wesleyorama2/waveshaper/internal/config"
	"github.com/wesleyorama2/waveshaper/pkg/jsonschema"
)

// Validator checks payloads against the configured JSON schema. A nil
// Validator accepts everything.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the schema named by cfg. It returns nil when no
// schema is configured.
func NewValidator(cfg config.PayloadConfig) (*Validator, error) {
	var (
		schema *jsonschema.Schema
		err    error
	)

	switch {
	case cfg.Schema != "":
		schema, err = jsonschema.Compile(cfg.Schema)
	case cfg.SchemaFile != "":
		schema, err = jsonschema.CompileFile(cfg.SchemaFile)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Validator{schema: schema}, nil
}

// Validate returns an error when payload does not satisfy the schema.
func (v *Validator) Validate(payload string) error {
	if v == nil {
		return nil
	}
	return v.schema.Validate([]byte(payload))
}
