// Package engine drives a waveshaper run.
//
// It wires an oscillator to an adaptive limiter and runs a pool of workers
// that each acquire a permit, produce the next payload of their own script
// sequence and hand it to the sink, until the oscillator has broadcast its
// last sample.
//
// Example usage:
//
//	cfg, _ := config.Load("run.yaml")
//	engine, _ := NewEngine(cfg)
//	result, _ := engine.Run(context.Background())
//	fmt.Printf("sent %d payloads\n", result.Metrics.TotalSends)
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/wesleyorama2/waveshaper/internal/config"
	"github.com/wesleyorama2/waveshaper/internal/metrics"
	"github.com/wesleyorama2/waveshaper/internal/payload"
	"github.com/wesleyorama2/waveshaper/internal/rate"
	"github.com/wesleyorama2/waveshaper/internal/sequence"
	"github.com/wesleyorama2/waveshaper/internal/sink"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

// Engine runs one configuration. It can be run more than once, but not
// concurrently.
type Engine struct {
	config *config.Config

	// Built from the configuration up front so bad scripts and schemas fail
	// before any load is generated.
	script    *sequence.Definition[string]
	validator *payload.Validator
	factory   rate.Factory
	oscConfig waveform.Config

	sink      sink.Sink
	collector *metrics.Collector
	hooks     []func(metrics.Calibration)

	metricsEngine *metrics.Engine
	mu            sync.Mutex
	running       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sends payloads to s instead of the configured sink. The engine
// does not close it.
func WithSink(s sink.Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithCollector reports to c. Without it a collector is created only when
// metrics.listen is configured.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.collector = c
	}
}

// WithCalibrationHook calls fn after every limiter recalibration.
func WithCalibrationHook(fn func(metrics.Calibration)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, fn)
	}
}

// Result contains the outcome of a run.
type Result struct {
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Waveform string  `json:"waveform"`
	Samples  int     `json:"samples"`
	RangeMin float64 `json:"rangeMin"`
	RangeMax float64 `json:"rangeMax"`
	Workers  int     `json:"workers"`

	Metrics       *metrics.Snapshot       `json:"metrics"`
	Calibrations  []metrics.Calibration   `json:"calibrations"`
	WorkerPermits []metrics.WorkerPermits `json:"workerPermits"`
	TimeSeries    []*metrics.TimeBucket   `json:"timeSeries,omitempty"`
	Phases        []metrics.PhaseChange   `json:"phases"`

	// DroppedCalibrations counts snapshots the limiter could not deliver
	DroppedCalibrations int64 `json:"droppedCalibrations"`

	// Interrupted is set when the run was cancelled before the oscillator finished
	Interrupted bool `json:"interrupted"`
}

// NewEngine validates cfg and prepares a run.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	oscConfig, err := cfg.Oscillator.WaveformConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid oscillator: %w", err)
	}

	factory, err := cfg.Limiter.Factory()
	if err != nil {
		return nil, fmt.Errorf("invalid limiter: %w", err)
	}

	script, err := payload.Build(cfg.Payload.Steps)
	if err != nil {
		return nil, fmt.Errorf("invalid payload script: %w", err)
	}

	validator, err := payload.NewValidator(cfg.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload schema: %w", err)
	}

	e := &Engine{
		config:    cfg,
		script:    script,
		validator: validator,
		factory:   factory,
		oscConfig: oscConfig,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Metrics returns the metrics engine of the current or last run.
func (e *Engine) Metrics() *metrics.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metricsEngine
}

// Run generates load until the oscillator is exhausted or ctx is cancelled.
//
// Cancelling ctx stops the oscillator and the workers; the partial result is
// still returned, with Interrupted set.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	metricsEngine := metrics.NewEngineWithConfig(metrics.EngineConfig{
		BucketInterval: time.Duration(e.config.Metrics.BucketInterval),
	})
	e.metricsEngine = metricsEngine
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	defer metricsEngine.Stop()

	startTime := time.Now()
	metricsEngine.SetPhase(metrics.PhaseInit)

	snk := e.sink
	if snk == nil {
		s, err := sink.New(e.config.Sink)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink: %w", err)
		}
		snk = s
		defer func() {
			if err := s.Close(); err != nil {
				klog.Errorf("Failed to close sink: %v", err)
			}
		}()
	}

	collector := e.collector
	if collector == nil && e.config.Metrics.Listen != "" {
		c, err := metrics.NewCollector()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
		collector = c

		serveCtx, stopServing := context.WithCancel(context.Background())
		defer stopServing()
		go func() {
			if err := c.Serve(serveCtx, e.config.Metrics.Listen); err != nil {
				klog.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	osc, err := waveform.New(e.oscConfig)
	if err != nil {
		return nil, err
	}
	if klog.V(3).Enabled() {
		osc.Sync(&waveform.LoggingListener{Name: e.oscConfig.Waveform.String()})
	}

	var limiter *rate.WaveformLimiter
	onCalibration := func(s rate.Snapshot) {
		cal := metrics.Calibration{
			Timestamp:     s.At,
			Sample:        s.Sample,
			CommandedRate: s.CurrentRate,
			EPS:           s.EPS,
			Permits:       s.Permits,
		}
		metricsEngine.RecordCalibration(cal)
		metricsEngine.SetCommandedRate(limiter.Rate())
		if collector != nil {
			collector.ObserveCalibration(cal, limiter.Rate())
		}
		for _, hook := range e.hooks {
			hook(cal)
		}
	}

	limiter = rate.NewWaveformLimiter(osc, rate.WithFactory(e.factory), rate.WithCallback(onCalibration))
	osc.Sync(limiter)

	klog.Infof("Starting %s: %d samples every %v in [%g, %g] with %d workers",
		e.oscConfig.Waveform, osc.Len(), e.oscConfig.SampleDuration,
		e.oscConfig.RangeMin, e.oscConfig.RangeMax, e.config.Workers)

	if err := osc.Start(ctx); err != nil {
		limiter.Close()
		return nil, fmt.Errorf("failed to start oscillator: %w", err)
	}
	metricsEngine.SetPhase(metrics.PhaseBroadcasting)

	var (
		wg     sync.WaitGroup
		active atomic.Int32
		failed atomic.Bool
	)
	for id := 1; id <= e.config.Workers; id++ {
		seq := e.script.New()
		seq.Context().Set(payload.WorkerKey, id)

		w := &worker{
			id:        id,
			permits:   e.config.Limiter.Permits,
			limiter:   limiter,
			seq:       seq,
			validator: e.validator,
			sink:      snk,
			metrics:   metricsEngine,
			collector: collector,
			failed:    &failed,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			n := active.Add(1)
			metricsEngine.SetActiveWorkers(int(n))
			if collector != nil {
				collector.SetActiveWorkers(int(n))
			}
			defer func() {
				n := active.Add(-1)
				metricsEngine.SetActiveWorkers(int(n))
				if collector != nil {
					collector.SetActiveWorkers(int(n))
				}
			}()

			w.run(ctx)
		}()
	}

	<-osc.Done()
	metricsEngine.SetPhase(metrics.PhaseDraining)
	klog.V(4).Info("Oscillator finished, draining workers")

	wg.Wait()
	limiter.Close()
	metricsEngine.SetPhase(metrics.PhaseDone)

	endTime := time.Now()
	result := &Result{
		Name:                e.config.Name,
		Description:         e.config.Description,
		StartTime:           startTime,
		EndTime:             endTime,
		Duration:            endTime.Sub(startTime),
		Waveform:            e.oscConfig.Waveform.String(),
		Samples:             osc.Len(),
		RangeMin:            e.oscConfig.RangeMin,
		RangeMax:            e.oscConfig.RangeMax,
		Workers:             e.config.Workers,
		Metrics:             metricsEngine.GetSnapshot(),
		Calibrations:        metricsEngine.GetCalibrations(),
		WorkerPermits:       metricsEngine.GetWorkerPermits(),
		TimeSeries:          metricsEngine.GetTimeSeries(),
		Phases:              metricsEngine.GetPhaseHistory(),
		DroppedCalibrations: limiter.Dropped(),
		Interrupted:         ctx.Err() != nil && osc.HasNext(),
	}

	klog.Infof("Finished after %v: %d sends, %d failed, %d invalid",
		result.Duration.Round(time.Millisecond), result.Metrics.TotalSends,
		result.Metrics.FailedSends, result.Metrics.InvalidPayloads)

	return result, nil
}

// worker produces payloads while the limiter follows the oscillator.
type worker struct {
	id        int
	permits   int
	limiter   *rate.WaveformLimiter
	seq       *sequence.Sequence[string]
	validator *payload.Validator
	sink      sink.Sink
	metrics   *metrics.Engine
	collector *metrics.Collector

	// failed is shared so only the first sink failure is logged as an error
	failed *atomic.Bool
}

func (w *worker) run(ctx context.Context) {
	klog.V(4).Infof("worker %d started", w.id)
	defer klog.V(4).Infof("worker %d stopped", w.id)

	for w.limiter.Updating() {
		wait, err := w.limiter.AcquireContext(ctx, w.permits)
		if err != nil {
			return
		}
		w.metrics.RecordPermit(w.id, w.permits, wait)
		if w.collector != nil {
			w.collector.ObserveWait(wait)
		}

		if !w.produce(ctx) {
			return
		}
	}
}

// produce sends one payload. It returns false when the run was cancelled.
func (w *worker) produce(ctx context.Context) bool {
	p := w.seq.Next()

	if err := w.validator.Validate(p); err != nil {
		w.metrics.RecordInvalid()
		if w.collector != nil {
			w.collector.ObserveSend("invalid", 0)
		}
		klog.V(4).Infof("worker %d: payload rejected by schema: %v", w.id, err)
		return true
	}

	res, err := w.sink.Send(ctx, sink.Message{
		Worker:    w.id,
		Iteration: w.seq.Iteration(),
		Payload:   []byte(p),
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return false
	}

	w.metrics.RecordSend(res.Duration, err == nil, int64(res.Bytes))
	if res.Body != nil {
		w.seq.Context().Set(payload.ResponseKey, res.Body)
	}

	if w.collector != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		w.collector.ObserveSend(result, res.Duration)
	}

	if err != nil {
		if w.failed.CompareAndSwap(false, true) {
			klog.Errorf("worker %d: send failed: %v", w.id, err)
		} else {
			klog.V(2).Infof("worker %d: send failed: %v", w.id, err)
		}
	}
	return true
}
