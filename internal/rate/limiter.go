package rate

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/waveshaper/internal/waveform"
	"k8s.io/klog/v2"
)

// DefaultNotifyQueueSize is the number of snapshots buffered for the
// registered callback before new ones are dropped.
const DefaultNotifyQueueSize = 128

// Source reports whether the signal driving a limiter is still changing.
// *waveform.Oscillator implements it.
type Source interface {
	Running() bool
	HasNext() bool
}

// Snapshot describes one recalibration of a WaveformLimiter.
type Snapshot struct {
	// Sample is the signal value the limiter was retuned to.
	Sample float64 `json:"sample"`

	// CurrentRate is the rate in force during the interval that just ended.
	CurrentRate float64 `json:"currentRate"`

	// EPS is the realized rate, in permits per second, over that interval.
	EPS float64 `json:"eps"`

	// Drift is CurrentRate - EPS.
	Drift float64 `json:"drift"`

	// Permits is the number of permits issued during the interval.
	Permits int64 `json:"permits"`

	// Elapsed is the length of the interval.
	Elapsed time.Duration `json:"elapsed"`

	// Calibrations counts recalibrations, including this one.
	Calibrations int64 `json:"calibrations"`

	// At is when the recalibration happened.
	At time.Time `json:"at"`
}

// Callback receives a snapshot after every recalibration.
type Callback func(Snapshot)

// Option configures a WaveformLimiter.
type Option func(*WaveformLimiter)

// WithFactory sets the bucket implementation. The default is a token bucket.
func WithFactory(f Factory) Option {
	return func(l *WaveformLimiter) {
		if f != nil {
			l.factory = f
		}
	}
}

// WithClock replaces time.Now for rate measurements.
func WithClock(now func() time.Time) Option {
	return func(l *WaveformLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithNotifyQueueSize bounds the number of snapshots waiting for the callback.
func WithNotifyQueueSize(n int) Option {
	return func(l *WaveformLimiter) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithCallback registers cb before any sample can arrive. It is equivalent to
// calling RegisterCallback right after construction.
func WithCallback(cb Callback) Option {
	return func(l *WaveformLimiter) {
		l.callback = cb
	}
}

// WaveformLimiter is a rate limiter whose rate follows a signal.
//
// It implements waveform.Listener: every sample received replaces the
// underlying bucket with a new one at the sample rate, after measuring the
// rate that was actually achieved since the previous sample. Acquire and
// TryAcquire may be called from any number of goroutines.
//
// A limiter runs a goroutine that delivers snapshots to the callback. Close
// must be called when the limiter is no longer needed to stop it.
type WaveformLimiter struct {
	source    Source
	factory   Factory
	now       func() time.Time
	queueSize int

	mu            sync.Mutex
	bucket        Bucket
	totalAcquired int64
	start         time.Time
	last          Snapshot
	calibrations  int64
	callback      Callback
	closed        bool

	notify   chan Snapshot
	dropped  atomic.Int64
	notified chan struct{}
}

// NewWaveformLimiter creates a limiter driven by source. It starts at MinRate
// until the first sample arrives. The caller must Close the limiter.
func NewWaveformLimiter(source Source, opts ...Option) *WaveformLimiter {
	l := &WaveformLimiter{
		source:    source,
		factory:   func(rate float64) Bucket { return NewTokenBucket(rate, 0) },
		now:       time.Now,
		queueSize: DefaultNotifyQueueSize,
		notified:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.bucket = l.factory(MinRate)
	l.start = l.now()
	l.notify = make(chan Snapshot, l.queueSize)
	go l.runNotifier()

	return l
}

// Attach creates a limiter, registers it with the oscillator, and starts the
// oscillator's broadcast if it is not already running.
func Attach(ctx context.Context, osc *waveform.Oscillator, opts ...Option) (*WaveformLimiter, error) {
	l := NewWaveformLimiter(osc, opts...)
	osc.Sync(l)
	if err := osc.Start(ctx); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// OnSignalChange implements waveform.Listener.
func (l *WaveformLimiter) OnSignalChange(value float64) {
	l.mu.Lock()

	now := l.now()
	elapsed := now.Sub(l.start)
	eps := realizedRate(l.totalAcquired, elapsed)
	currentRate := l.bucket.Rate()

	// recreate rather than retune: wait owed at the old rate is discarded
	l.bucket = l.factory(value)
	nextRate := l.bucket.Rate()
	l.calibrations++

	snap := Snapshot{
		Sample:       value,
		CurrentRate:  currentRate,
		EPS:          eps,
		Drift:        currentRate - eps,
		Permits:      l.totalAcquired,
		Elapsed:      elapsed,
		Calibrations: l.calibrations,
		At:           now,
	}
	l.last = snap
	l.totalAcquired = 0
	l.start = now

	if l.callback != nil && !l.closed {
		select {
		case l.notify <- snap:
		default:
			l.dropped.Add(1)
		}
	}
	l.mu.Unlock()

	klog.V(2).Infof("previous rate: %.1f, eps: %.1f, diff: %.1f, next rate: %.1f",
		currentRate, eps, snap.Drift, nextRate)
}

// realizedRate returns permits per second over elapsed, measured in whole
// milliseconds. An interval shorter than a millisecond counts as one.
func realizedRate(permits int64, elapsed time.Duration) float64 {
	if permits == 0 {
		return 0
	}
	ms := math.Max(float64(elapsed.Milliseconds()), 1)
	return float64(permits) / ms * 1000
}

// Acquire blocks until the permits are available and returns the time spent
// waiting. Values below 1 are treated as 1.
func (l *WaveformLimiter) Acquire(permits int) time.Duration {
	permits = normalizePermits(permits)

	wait := l.currentBucket().Reserve(permits)
	if wait > 0 {
		time.Sleep(wait)
	}

	l.record(permits)
	return wait
}

// AcquireContext is Acquire that gives up when ctx is done. Permits are only
// counted when the wait completes.
func (l *WaveformLimiter) AcquireContext(ctx context.Context, permits int) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	permits = normalizePermits(permits)

	wait := l.currentBucket().Reserve(permits)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	l.record(permits)
	return wait, nil
}

// TryAcquire takes the permits if they are available without waiting.
func (l *WaveformLimiter) TryAcquire(permits int) bool {
	permits = normalizePermits(permits)
	if !l.currentBucket().TryReserve(permits) {
		return false
	}
	l.record(permits)
	return true
}

// Updating reports whether the driving signal is still running and has samples
// left. Producers loop while it is true.
func (l *WaveformLimiter) Updating() bool {
	return l.source.Running() && l.source.HasNext()
}

// Rate returns the rate currently in force.
func (l *WaveformLimiter) Rate() float64 {
	return l.currentBucket().Rate()
}

// Snapshot returns the most recent recalibration.
func (l *WaveformLimiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Acquired returns the permits issued since the last recalibration.
func (l *WaveformLimiter) Acquired() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalAcquired
}

// RegisterCallback sets the function called with every new snapshot. Only one
// callback is kept: registering replaces the previous one. Callbacks run on a
// separate goroutine; snapshots are dropped if it falls behind.
func (l *WaveformLimiter) RegisterCallback(cb Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callback = cb
}

// Dropped returns the number of snapshots not delivered to the callback
// because its queue was full.
func (l *WaveformLimiter) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops callback delivery after the queued snapshots have been handled.
// It is safe to call more than once.
func (l *WaveformLimiter) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.notify)
	}
	l.mu.Unlock()

	<-l.notified
}

func (l *WaveformLimiter) currentBucket() Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket
}

func (l *WaveformLimiter) record(permits int) {
	l.mu.Lock()
	l.totalAcquired += int64(permits)
	l.mu.Unlock()
}

func (l *WaveformLimiter) runNotifier() {
	defer close(l.notified)

	for snap := range l.notify {
		l.mu.Lock()
		cb := l.callback
		l.mu.Unlock()

		if cb != nil {
			cb(snap)
		}
	}
}
