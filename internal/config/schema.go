// Package config defines the waveshaper run configuration.
//
// A configuration describes the oscillator that shapes the load, the limiter
// that turns samples into permits, the payload script each worker runs, and
// the sink payloads are sent to. It can be loaded from YAML or JSON, or built
// from command line flags.
package config

import (
	"time"
)

// Config is the root configuration for a run.
type Config struct {
	// Name is an optional name for the run
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description provides context about the run
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Oscillator shapes the rate over time
	Oscillator OscillatorConfig `json:"oscillator" yaml:"oscillator"`

	// Limiter controls how samples become permits
	Limiter LimiterConfig `json:"limiter,omitempty" yaml:"limiter,omitempty"`

	// Workers is the number of concurrent producers
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Payload is the script that generates each message
	Payload PayloadConfig `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Sink is where payloads are sent
	Sink SinkConfig `json:"sink,omitempty" yaml:"sink,omitempty"`

	// Output controls console output
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// Metrics controls metrics collection and exposition
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// OscillatorConfig describes the waveform driving the rate.
type OscillatorConfig struct {
	// Waveform is one of sine, saw, reverse-saw, square, triangle
	Waveform string `json:"waveform" yaml:"waveform"`

	// Cycles is the number of times the waveform repeats
	Cycles int `json:"cycles" yaml:"cycles"`

	// SampleRate is the number of samples per cycle
	SampleRate int `json:"sampleRate" yaml:"sampleRate"`

	// SampleDuration is how long each sample is in force (e.g., "250ms")
	SampleDuration Duration `json:"sampleDuration" yaml:"sampleDuration"`

	// Range bounds the rate in permits per second
	Range RangeConfig `json:"range" yaml:"range"`

	// HorizontalShift offsets the waveform by a number of samples
	HorizontalShift int `json:"horizontalShift,omitempty" yaml:"horizontalShift,omitempty"`

	// ListenerQueueSize bounds the samples buffered per listener
	ListenerQueueSize int `json:"listenerQueueSize,omitempty" yaml:"listenerQueueSize,omitempty"`
}

// RangeConfig is a closed interval of rates.
type RangeConfig struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// LimiterConfig configures the adaptive rate limiter.
type LimiterConfig struct {
	// Algorithm is "token-bucket" (default) or "leaky-bucket"
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`

	// MaxBurst is the number of permits a bucket may store (0 = algorithm default)
	MaxBurst float64 `json:"maxBurst,omitempty" yaml:"maxBurst,omitempty"`

	// Permits is the number of permits each worker acquires per payload
	Permits int `json:"permits,omitempty" yaml:"permits,omitempty"`
}

// PayloadConfig is the script each worker runs to produce messages.
type PayloadConfig struct {
	// Steps are run in order, looping forever
	Steps []StepConfig `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Schema is an inline JSON schema every payload must satisfy
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// SchemaFile is a path to a JSON schema file
	SchemaFile string `json:"schemaFile,omitempty" yaml:"schemaFile,omitempty"`
}

// StepConfig is a single payload step.
//
// A step first stores its Set values and Extract result in the step context,
// then applies its Jump, then produces Value or the rendered Template.
type StepConfig struct {
	// Name for this step (used in logs)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Value is a literal payload
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Template is a payload with {{iteration}}, {{position}}, {{worker}} and {{key}} placeholders
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Set stores rendered templates in the step context
	Set map[string]string `json:"set,omitempty" yaml:"set,omitempty"`

	// Extract copies a value out of a JSON document in the step context
	Extract *ExtractConfig `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Jump redirects the sequence
	Jump *JumpConfig `json:"jump,omitempty" yaml:"jump,omitempty"`
}

// ExtractConfig copies a value found at a JSON path.
type ExtractConfig struct {
	// From is the context key holding the JSON document
	From string `json:"from" yaml:"from"`

	// Path is the JSON path (e.g., "$.user.id" or "user.id")
	Path string `json:"path" yaml:"path"`

	// Into is the context key the value is stored under
	Into string `json:"into" yaml:"into"`
}

// JumpConfig moves the sequence pointer.
type JumpConfig struct {
	// Direction is "forward" or "back"
	Direction string `json:"direction" yaml:"direction"`

	// Steps is how far to move
	Steps int `json:"steps" yaml:"steps"`

	// When jumps only during this iteration
	When int64 `json:"when,omitempty" yaml:"when,omitempty"`

	// Every jumps on iterations divisible by this value
	Every int64 `json:"every,omitempty" yaml:"every,omitempty"`
}

// SinkConfig configures where payloads go.
type SinkConfig struct {
	// Type is one of discard (default), stdout, file, http
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// URL is the endpoint for the http sink
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Method is the HTTP method for the http sink (default: POST)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Headers are added to every HTTP request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Timeout bounds each HTTP request (default: 30s)
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// AckPath is a JSON path that must exist in every HTTP response
	AckPath string `json:"ackPath,omitempty" yaml:"ackPath,omitempty"`

	// Path is the output file for the file sink
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Append appends to the file instead of truncating it
	Append bool `json:"append,omitempty" yaml:"append,omitempty"`
}

// OutputConfig controls console output.
type OutputConfig struct {
	// Quiet disables live progress
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`

	// NoColor disables colored output
	NoColor bool `json:"noColor,omitempty" yaml:"noColor,omitempty"`

	// SparklineWidth is the number of calibrations shown in the live sparkline
	SparklineWidth int `json:"sparklineWidth,omitempty" yaml:"sparklineWidth,omitempty"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Listen is the address to serve Prometheus metrics on (e.g., ":9090")
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// BucketInterval is the time-series bucket size (default: 1s)
	BucketInterval Duration `json:"bucketInterval,omitempty" yaml:"bucketInterval,omitempty"`
}

// Duration is a time.Duration that (un)marshals as a Go duration string.
type Duration time.Duration

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
