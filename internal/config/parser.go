package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/waveshaper/internal/rate"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

// Default values applied by ApplyDefaults.
const (
	DefaultWaveform       = "sine"
	DefaultCycles         = 1
	DefaultSampleRate     = 20
	DefaultSampleDuration = 250 * time.Millisecond
	DefaultRangeMin       = 1
	DefaultRangeMax       = 100
	DefaultWorkers        = 10
	DefaultAlgorithm      = "token-bucket"
	DefaultPermits        = 1
	DefaultSinkType       = "discard"
	DefaultHTTPMethod     = "POST"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultBucketInterval = time.Second
)

// LoadConfig loads a configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*Config, error) {
	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	ApplyDefaults(c)
	return c
}

// ApplyDefaults fills in zero values.
func ApplyDefaults(c *Config) {
	osc := &c.Oscillator
	if osc.Waveform == "" {
		osc.Waveform = DefaultWaveform
	}
	if osc.Cycles == 0 {
		osc.Cycles = DefaultCycles
	}
	if osc.SampleRate == 0 {
		osc.SampleRate = DefaultSampleRate
	}
	if osc.SampleDuration == 0 {
		osc.SampleDuration = Duration(DefaultSampleDuration)
	}
	if osc.Range.Min == 0 && osc.Range.Max == 0 {
		osc.Range.Min = DefaultRangeMin
		osc.Range.Max = DefaultRangeMax
	}

	if c.Limiter.Algorithm == "" {
		c.Limiter.Algorithm = DefaultAlgorithm
	}
	if c.Limiter.Permits == 0 {
		c.Limiter.Permits = DefaultPermits
	}

	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}

	if c.Sink.Type == "" {
		c.Sink.Type = DefaultSinkType
	}
	if c.Sink.Type == "http" {
		if c.Sink.Method == "" {
			c.Sink.Method = DefaultHTTPMethod
		}
		if c.Sink.Timeout == 0 {
			c.Sink.Timeout = Duration(DefaultHTTPTimeout)
		}
	}

	if c.Output.SparklineWidth == 0 {
		c.Output.SparklineWidth = osc.SampleRate
	}

	if c.Metrics.BucketInterval == 0 {
		c.Metrics.BucketInterval = Duration(DefaultBucketInterval)
	}
}

// TotalDuration returns how long the oscillator broadcasts for.
func (o OscillatorConfig) TotalDuration() time.Duration {
	return time.Duration(o.Cycles*o.SampleRate) * time.Duration(o.SampleDuration)
}

// WaveformConfig converts the oscillator section into an oscillator config.
func (o OscillatorConfig) WaveformConfig() (waveform.Config, error) {
	w, err := waveform.ParseWaveform(o.Waveform)
	if err != nil {
		return waveform.Config{}, err
	}

	return waveform.Config{
		Waveform:          w,
		Cycles:            o.Cycles,
		SampleRate:        o.SampleRate,
		RangeMin:          o.Range.Min,
		RangeMax:          o.Range.Max,
		SampleDuration:    time.Duration(o.SampleDuration),
		HorizontalShift:   o.HorizontalShift,
		ListenerQueueSize: o.ListenerQueueSize,
	}, nil
}

// Factory returns the bucket factory the limiter section selects.
func (l LimiterConfig) Factory() (rate.Factory, error) {
	alg, err := rate.ParseAlgorithm(l.Algorithm)
	if err != nil {
		return nil, err
	}
	return rate.NewFactory(alg, l.MaxBurst)
}
