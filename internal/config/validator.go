package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wesleyorama2/waveshaper/internal/rate"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e.Errors), strings.Join(msgs, "\n  - "))
}

// Add adds a validation error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var sinkTypes = map[string]bool{
	"discard": true,
	"stdout":  true,
	"file":    true,
	"http":    true,
}

var httpMethods = map[string]bool{
	"POST":  true,
	"PUT":   true,
	"PATCH": true,
	"GET":   true,
}

// Validate validates the configuration and returns all errors found.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	c.validateOscillator(errs)
	c.validateLimiter(errs)

	if c.Workers <= 0 {
		errs.Add("workers", "must be at least 1")
	}

	c.validatePayload(errs)
	c.validateSink(errs)

	if c.Output.SparklineWidth < 0 {
		errs.Add("output.sparklineWidth", "cannot be negative")
	}
	if c.Metrics.BucketInterval < 0 {
		errs.Add("metrics.bucketInterval", "cannot be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c *Config) validateOscillator(errs *ValidationErrors) {
	osc := c.Oscillator

	if _, err := waveform.ParseWaveform(osc.Waveform); err != nil {
		errs.Add("oscillator.waveform", err.Error())
	}
	if osc.Cycles <= 0 {
		errs.Add("oscillator.cycles", "must be at least 1")
	}
	if osc.SampleRate <= 0 {
		errs.Add("oscillator.sampleRate", "must be at least 1")
	}
	if osc.SampleDuration <= 0 {
		errs.Add("oscillator.sampleDuration", "must be positive")
	}
	if osc.Range.Min < rate.MinRate {
		errs.Add("oscillator.range.min", fmt.Sprintf("must be at least %.0f permit per second", rate.MinRate))
	}
	if !(osc.Range.Min < osc.Range.Max) {
		errs.Add("oscillator.range", fmt.Sprintf("min (%g) must be less than max (%g)", osc.Range.Min, osc.Range.Max))
	}
	if osc.ListenerQueueSize < 0 {
		errs.Add("oscillator.listenerQueueSize", "cannot be negative")
	}
}

func (c *Config) validateLimiter(errs *ValidationErrors) {
	if _, err := rate.ParseAlgorithm(c.Limiter.Algorithm); err != nil {
		errs.Add("limiter.algorithm", err.Error())
	}
	if c.Limiter.MaxBurst < 0 {
		errs.Add("limiter.maxBurst", "cannot be negative")
	}
	if c.Limiter.Permits <= 0 {
		errs.Add("limiter.permits", "must be at least 1")
	}
}

func (c *Config) validatePayload(errs *ValidationErrors) {
	if c.Payload.Schema != "" && c.Payload.SchemaFile != "" {
		errs.Add("payload", "schema and schemaFile are mutually exclusive")
	}

	for i, step := range c.Payload.Steps {
		prefix := fmt.Sprintf("payload.steps[%d]", i)
		if step.Name != "" {
			prefix = fmt.Sprintf("payload.steps[%d] (%s)", i, step.Name)
		}

		if step.Value != "" && step.Template != "" {
			errs.Add(prefix, "value and template are mutually exclusive")
		}

		if ex := step.Extract; ex != nil {
			if ex.From == "" {
				errs.Add(prefix+".extract.from", "is required")
			}
			if ex.Path == "" {
				errs.Add(prefix+".extract.path", "is required")
			}
			if ex.Into == "" {
				errs.Add(prefix+".extract.into", "is required")
			}
		}

		if j := step.Jump; j != nil {
			switch j.Direction {
			case "forward", "back":
			default:
				errs.Add(prefix+".jump.direction", fmt.Sprintf("must be 'forward' or 'back', got '%s'", j.Direction))
			}
			if j.Steps <= 0 {
				errs.Add(prefix+".jump.steps", "must be at least 1")
			}
			if j.When < 0 {
				errs.Add(prefix+".jump.when", "cannot be negative")
			}
			if j.Every < 0 {
				errs.Add(prefix+".jump.every", "cannot be negative")
			}
			if j.When > 0 && j.Every > 0 {
				errs.Add(prefix+".jump", "when and every are mutually exclusive")
			}
		}
	}
}

func (c *Config) validateSink(errs *ValidationErrors) {
	s := c.Sink

	if !sinkTypes[s.Type] {
		errs.Add("sink.type", fmt.Sprintf("must be one of discard, stdout, file, http; got '%s'", s.Type))
		return
	}

	switch s.Type {
	case "http":
		if s.URL == "" {
			errs.Add("sink.url", "is required for the http sink")
		} else if u, err := url.Parse(s.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("sink.url", fmt.Sprintf("'%s' is not a valid http(s) URL", s.URL))
		}
		if s.Method != "" && !httpMethods[strings.ToUpper(s.Method)] {
			errs.Add("sink.method", fmt.Sprintf("unsupported method '%s'", s.Method))
		}
		if s.Timeout < 0 {
			errs.Add("sink.timeout", "cannot be negative")
		}
	case "file":
		if s.Path == "" {
			errs.Add("sink.path", "is required for the file sink")
		}
	}
}
