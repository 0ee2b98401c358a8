package shaper

import (
	"context"
	"slices"

	"github.com/wesleyorama2/waveshaper/internal/config"
	"github.com/wesleyorama2/waveshaper/internal/engine"
	"github.com/wesleyorama2/waveshaper/internal/metrics"
	"github.com/wesleyorama2/waveshaper/internal/rate"
	"github.com/wesleyorama2/waveshaper/internal/report"
	"github.com/wesleyorama2/waveshaper/internal/sink"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

type (
	// Config is a complete run configuration.
	Config = config.Config

	// Result contains the outcome of a run.
	Result = engine.Result

	// Calibration is one limiter retune as recorded in a Result.
	Calibration = metrics.Calibration

	// Waveform is a periodic shape.
	Waveform = waveform.Waveform

	// OscillatorConfig describes an oscillator.
	OscillatorConfig = waveform.Config

	// Oscillator samples a waveform and broadcasts the samples.
	Oscillator = waveform.Oscillator

	// Limiter is a rate limiter retuned by every oscillator sample.
	Limiter = rate.WaveformLimiter

	// LimiterOption configures a Limiter.
	LimiterOption = rate.Option

	// Snapshot describes one limiter recalibration.
	Snapshot = rate.Snapshot

	// Sink receives generated payloads.
	Sink = sink.Sink
)

// Waveforms.
const (
	Sine       = waveform.Sine
	Saw        = waveform.Saw
	ReverseSaw = waveform.ReverseSaw
	Square     = waveform.Square
	Triangle   = waveform.Triangle
)

// LoadConfig loads, defaults and validates a YAML or JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewOscillator creates an oscillator.
func NewOscillator(cfg OscillatorConfig) (*Oscillator, error) {
	return waveform.New(cfg)
}

// Attach creates a limiter that follows osc and starts the broadcast.
func Attach(ctx context.Context, osc *Oscillator, opts ...LimiterOption) (*Limiter, error) {
	return rate.Attach(ctx, osc, opts...)
}

// WithCallback delivers a Snapshot after every recalibration.
func WithCallback(cb func(Snapshot)) LimiterOption {
	return rate.WithCallback(cb)
}

// Preview returns every sample an oscillator with cfg would broadcast.
func Preview(cfg OscillatorConfig) ([]float64, error) {
	osc, err := waveform.New(cfg)
	if err != nil {
		return nil, err
	}
	return slices.Collect(osc.All()), nil
}

// RunnerOption configures a Runner.
type RunnerOption = engine.Option

// WithSink sends payloads to s instead of the configured sink.
func WithSink(s Sink) RunnerOption {
	return engine.WithSink(s)
}

// WithCalibrationHook calls fn after every limiter recalibration.
func WithCalibrationHook(fn func(Calibration)) RunnerOption {
	return engine.WithCalibrationHook(fn)
}

// Runner provides a high-level API for running a configuration.
//
//	cfg, _ := shaper.LoadConfig("ramp.yaml")
//	runner, _ := shaper.NewRunner(cfg)
//	result, _ := runner.Run(context.Background())
type Runner struct {
	engine *engine.Engine
}

// NewRunner validates cfg and prepares a runner for it.
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	e, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Runner{engine: e}, nil
}

// Run generates load until the oscillator is exhausted or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.engine.Run(ctx)
}

// GetMetrics returns the current metrics snapshot, or nil before the first run.
// Can be called during a run to get real-time metrics.
func (r *Runner) GetMetrics() *metrics.Snapshot {
	m := r.engine.Metrics()
	if m == nil {
		return nil
	}
	return m.GetSnapshot()
}

// GetTimeSeries returns the time series of the current or last run.
func (r *Runner) GetTimeSeries() []*metrics.TimeBucket {
	m := r.engine.Metrics()
	if m == nil {
		return nil
	}
	return m.GetTimeSeries()
}

// WriteHTMLReport writes a standalone HTML report for result to path.
func WriteHTMLReport(result *Result, path string) error {
	return report.GenerateHTML(result, path)
}
