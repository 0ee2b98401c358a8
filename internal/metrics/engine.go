package metrics

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates run metrics using HDR histograms.
//
// It keeps a send latency histogram and a permit wait histogram, lock-free
// send counters, per-worker permit counts, a bounded history of limiter
// calibrations, and time buckets emitted by a background goroutine.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations,
// histograms use mutex protection, and the background emitter runs
// in its own goroutine.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	waitHist   *hdrhistogram.Histogram
	waitHistMu sync.Mutex

	// Atomic counters for lock-free updates
	totalSends      atomic.Int64
	successSends    atomic.Int64
	failedSends     atomic.Int64
	invalidPayloads atomic.Int64
	totalBytes      atomic.Int64

	activeWorkers atomic.Int32
	commandedRate atomic.Uint64 // math.Float64bits

	workerPermits   map[int]*atomic.Int64
	workerPermitsMu sync.RWMutex

	calibrations   []Calibration
	calibrationsMu sync.Mutex

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	// Background emitter
	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
// Zero fields take their defaults.
func NewEngineWithConfig(config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.BucketInterval <= 0 {
		config.BucketInterval = defaults.BucketInterval
	}
	if config.MaxBuckets <= 0 {
		config.MaxBuckets = defaults.MaxBuckets
	}
	if config.MaxCalibrations <= 0 {
		config.MaxCalibrations = defaults.MaxCalibrations
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = defaults.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = defaults.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = defaults.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		waitHist:      hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		workerPermits: make(map[int]*atomic.Int64),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// RecordSend records the outcome of one send to the sink.
func (e *Engine) RecordSend(duration time.Duration, success bool, bytes int64) {
	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(e.clamp(duration))
	e.latencyHistMu.Unlock()

	e.totalSends.Add(1)
	e.totalBytes.Add(bytes)

	if success {
		e.successSends.Add(1)
	} else {
		e.failedSends.Add(1)
	}

	e.bucketStore.RecordSend(success)
}

// RecordInvalid records a payload that failed validation and was not sent.
func (e *Engine) RecordInvalid() {
	e.invalidPayloads.Add(1)
}

// RecordPermit records permits acquired by a worker and how long it waited.
func (e *Engine) RecordPermit(worker int, permits int, wait time.Duration) {
	e.waitHistMu.Lock()
	e.waitHist.RecordValue(e.clamp(wait))
	e.waitHistMu.Unlock()

	e.workerPermitsMu.RLock()
	counter, ok := e.workerPermits[worker]
	e.workerPermitsMu.RUnlock()

	if !ok {
		e.workerPermitsMu.Lock()
		counter, ok = e.workerPermits[worker]
		if !ok {
			counter = &atomic.Int64{}
			e.workerPermits[worker] = counter
		}
		e.workerPermitsMu.Unlock()
	}

	counter.Add(int64(permits))
}

// RecordCalibration appends a limiter calibration to the history. The oldest
// entries are discarded beyond MaxCalibrations.
func (e *Engine) RecordCalibration(c Calibration) {
	e.calibrationsMu.Lock()
	defer e.calibrationsMu.Unlock()

	e.calibrations = append(e.calibrations, c)
	if over := len(e.calibrations) - e.config.MaxCalibrations; over > 0 {
		e.calibrations = append(e.calibrations[:0:0], e.calibrations[over:]...)
	}
}

// clamp converts a duration to microseconds within the histogram range.
func (e *Engine) clamp(d time.Duration) int64 {
	micros := d.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}
	return micros
}

// SetPhase updates the current run phase.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Sends:     e.totalSends.Load(),
	})
}

// GetPhase returns the current run phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveWorkers updates the active worker count.
func (e *Engine) SetActiveWorkers(count int) {
	e.activeWorkers.Store(int32(count))
}

// GetActiveWorkers returns the current active worker count.
func (e *Engine) GetActiveWorkers() int {
	return int(e.activeWorkers.Load())
}

// SetCommandedRate records the limiter rate currently in force.
func (e *Engine) SetCommandedRate(rate float64) {
	e.commandedRate.Store(math.Float64bits(rate))
}

// GetCommandedRate returns the limiter rate currently in force.
func (e *Engine) GetCommandedRate() float64 {
	return math.Float64frombits(e.commandedRate.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(BucketTotals{
		Sends:         e.totalSends.Load(),
		Successes:     e.successSends.Load(),
		Failures:      e.failedSends.Load(),
		Bytes:         e.totalBytes.Load(),
		CommandedRate: e.GetCommandedRate(),
		ActiveWorkers: e.GetActiveWorkers(),
		Phase:         e.GetPhase(),
	}, e.GetLatencyPercentiles())
}

// GetLatencyPercentiles returns current send latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: time.Duration(e.latencyHist.Min()) * time.Microsecond,
		Max: time.Duration(e.latencyHist.Max()) * time.Microsecond,
		P50: time.Duration(e.latencyHist.ValueAtQuantile(50)) * time.Microsecond,
		P90: time.Duration(e.latencyHist.ValueAtQuantile(90)) * time.Microsecond,
		P95: time.Duration(e.latencyHist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(e.latencyHist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

func histogramStats(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := histogramStats(e.latencyHist)
	e.latencyHistMu.Unlock()

	e.waitHistMu.Lock()
	wait := histogramStats(e.waitHist)
	e.waitHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalSends.Load()
	failed := e.failedSends.Load()

	sps := 0.0
	if elapsed.Seconds() > 0 {
		sps = float64(total) / elapsed.Seconds()
	}

	broadcastSPS, _ := e.bucketStore.CalculateBroadcastSPS()

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalSends:      total,
		SuccessSends:    e.successSends.Load(),
		FailedSends:     failed,
		InvalidPayloads: e.invalidPayloads.Load(),
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		Wait:            wait,
		SPS:             sps,
		BroadcastSPS:    broadcastSPS,
		ErrorRate:       errorRate,
		CommandedRate:   e.GetCommandedRate(),
		ActiveWorkers:   e.GetActiveWorkers(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetCalibrations returns the recorded calibrations in order.
func (e *Engine) GetCalibrations() []Calibration {
	e.calibrationsMu.Lock()
	defer e.calibrationsMu.Unlock()

	result := make([]Calibration, len(e.calibrations))
	copy(result, e.calibrations)
	return result
}

// WorkerPermits is the number of permits acquired by one worker.
type WorkerPermits struct {
	Worker  int   `json:"worker"`
	Permits int64 `json:"permits"`
}

// GetWorkerPermits returns permits per worker, ordered by worker.
func (e *Engine) GetWorkerPermits() []WorkerPermits {
	e.workerPermitsMu.RLock()
	defer e.workerPermitsMu.RUnlock()

	result := make([]WorkerPermits, 0, len(e.workerPermits))
	for worker, counter := range e.workerPermits {
		result = append(result, WorkerPermits{Worker: worker, Permits: counter.Load()})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Worker < result[j].Worker })
	return result
}

// Stop stops the metrics engine and emits a final bucket. Calling Stop more
// than once has no further effect.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.waitHistMu.Lock()
	e.waitHist.Reset()
	e.waitHistMu.Unlock()

	e.totalSends.Store(0)
	e.successSends.Store(0)
	e.failedSends.Store(0)
	e.invalidPayloads.Store(0)
	e.totalBytes.Store(0)
	e.activeWorkers.Store(0)
	e.commandedRate.Store(0)

	e.workerPermitsMu.Lock()
	e.workerPermits = make(map[int]*atomic.Int64)
	e.workerPermitsMu.Unlock()

	e.calibrationsMu.Lock()
	e.calibrations = nil
	e.calibrationsMu.Unlock()

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseHistory = nil
	e.phaseMu.Unlock()

	e.bucketStore.Reset()
	e.startTime = time.Now()
}
