// Package metrics collects send latency, permit wait and rate calibration
// metrics for a waveshaper run.
package metrics

import "time"

// Phase represents a phase of a run.
type Phase string

const (
	// PhaseInit is the phase before the oscillator starts
	PhaseInit Phase = "init"

	// PhaseBroadcasting is the phase while the oscillator is broadcasting samples
	PhaseBroadcasting Phase = "broadcasting"

	// PhaseDraining is the phase after the last sample while workers finish in-flight sends
	PhaseDraining Phase = "draining"

	// PhaseDone indicates the run has completed
	PhaseDone Phase = "done"
)

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	// TotalSends is the total number of payloads sent
	TotalSends int64 `json:"totalSends"`

	// SuccessSends is the number of sends accepted by the sink
	SuccessSends int64 `json:"successSends"`

	// FailedSends is the number of sends rejected by the sink or that errored
	FailedSends int64 `json:"failedSends"`

	// InvalidPayloads is the number of payloads that failed validation and were not sent
	InvalidPayloads int64 `json:"invalidPayloads"`

	// TotalBytes is the total payload bytes sent
	TotalBytes int64 `json:"totalBytes"`

	// Latency contains send latency statistics
	Latency LatencyStats `json:"latency"`

	// Wait contains permit wait statistics
	Wait LatencyStats `json:"wait"`

	// SPS is the overall sends per second
	SPS float64 `json:"sps"`

	// BroadcastSPS is the average sends per second while broadcasting
	BroadcastSPS float64 `json:"broadcastSps"`

	// ErrorRate is the fraction of failed sends (0.0 to 1.0)
	ErrorRate float64 `json:"errorRate"`

	// CommandedRate is the limiter rate currently in force
	CommandedRate float64 `json:"commandedRate"`

	// ActiveWorkers is the current number of active workers
	ActiveWorkers int `json:"activeWorkers"`

	// CurrentPhase is the current run phase
	CurrentPhase Phase `json:"currentPhase"`

	// Elapsed is the time elapsed since the run started
	Elapsed time.Duration `json:"elapsed"`

	// StartTime is when the run started
	StartTime time.Time `json:"startTime"`

	// Timestamp is when this snapshot was taken
	Timestamp time.Time `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles holds latency percentile values.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// TimeBucket represents metrics for one bucket interval.
//
// Each bucket captures cumulative totals and interval deltas.
type TimeBucket struct {
	// Timestamp when this bucket was created
	Timestamp time.Time `json:"timestamp"`

	// Cumulative counters (total since run start)
	TotalSends     int64 `json:"totalSends"`
	TotalSuccesses int64 `json:"totalSuccesses"`
	TotalFailures  int64 `json:"totalFailures"`
	TotalBytes     int64 `json:"totalBytes"`

	// Interval metrics
	IntervalSends int64   `json:"intervalSends"`
	IntervalSPS   float64 `json:"intervalSPS"`

	// CommandedRate is the limiter rate in force when the bucket was created
	CommandedRate float64 `json:"commandedRate"`

	// Latency percentiles (from HDR histogram at this point in time)
	LatencyMin time.Duration `json:"latencyMin"`
	LatencyMax time.Duration `json:"latencyMax"`
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP90 time.Duration `json:"latencyP90"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	// Active state
	ActiveWorkers int   `json:"activeWorkers"`
	Phase         Phase `json:"phase"`

	// Error rate for this interval
	IntervalErrorRate float64 `json:"intervalErrorRate"`
}

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Sends     int64     `json:"sends"`
}

// Calibration records one retuning of the rate limiter.
type Calibration struct {
	Timestamp time.Time `json:"timestamp"`

	// Sample is the oscillator value the limiter was retuned to
	Sample float64 `json:"sample"`

	// CommandedRate is the rate that was in force before the retune
	CommandedRate float64 `json:"commandedRate"`

	// EPS is the realized permits per second under CommandedRate
	EPS float64 `json:"eps"`

	// Permits is the number of permits issued under CommandedRate
	Permits int64 `json:"permits"`
}

// Drift returns CommandedRate - EPS.
func (c Calibration) Drift() float64 {
	return c.CommandedRate - c.EPS
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// MaxCalibrations is the maximum number of calibrations to retain (default: 10000)
	MaxCalibrations int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		MaxCalibrations:  10000,
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}
