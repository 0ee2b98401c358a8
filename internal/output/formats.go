package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/waveshaper/internal/engine"
)

// OutputFormat represents the available result formats
type OutputFormat string

const (
	// FormatText is the default human-readable summary
	FormatText OutputFormat = "text"
	// FormatJSON outputs the full result in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs the full result in YAML format
	FormatYAML OutputFormat = "yaml"
	// FormatHTML writes a standalone HTML report with charts
	FormatHTML OutputFormat = "html"
)

// ParseFormat parses a format name. The empty name is FormatText.
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json, yaml or html)", name)
	}
}

// WriteResult writes r to w in a machine readable format.
func WriteResult(w io.Writer, format OutputFormat, r *engine.Result) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	case FormatYAML:
		return writeYAML(w, r)
	default:
		return fmt.Errorf("format %q is not machine readable", format)
	}
}

// writeYAML goes through JSON so both formats share field names.
func writeYAML(w io.Writer, r *engine.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}
