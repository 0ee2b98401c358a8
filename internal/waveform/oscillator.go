package waveform

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

var (
	// ErrExhausted is returned by Next once every sample has been produced.
	ErrExhausted = errors.New("tried to sample a fully sampled waveform")

	// ErrInvalidConfig is returned when an oscillator cannot be built or
	// started with the given configuration.
	ErrInvalidConfig = errors.New("invalid oscillator configuration")
)

// DefaultListenerQueueSize is the number of samples buffered per listener
// before the broadcaster waits on it.
const DefaultListenerQueueSize = 64

// Config describes an oscillator.
type Config struct {
	// Waveform is the shape repeated by the oscillator.
	Waveform Waveform

	// Cycles is the number of times the waveform is repeated.
	Cycles int

	// SampleRate is the number of samples taken per cycle.
	SampleRate int

	// RangeMin and RangeMax bound the scaled samples.
	RangeMin float64
	RangeMax float64

	// SampleDuration is the broadcast period. It is only required by Start.
	SampleDuration time.Duration

	// HorizontalShift offsets the phase by a number of samples. Half a cycle
	// is always added on top so the first sample lands on the cycle start.
	HorizontalShift int

	// ListenerQueueSize bounds each listener's pending samples. Zero means
	// DefaultListenerQueueSize.
	ListenerQueueSize int
}

// DefaultConfig returns a single cycle sine wave sampled 100 times in [-1, 1].
func DefaultConfig() Config {
	return Config{
		Waveform:   Sine,
		Cycles:     1,
		SampleRate: 100,
		RangeMin:   -1,
		RangeMax:   1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, ok := waveformNames[c.Waveform]; !ok {
		return fmt.Errorf("%w: unknown waveform %d", ErrInvalidConfig, int(c.Waveform))
	}
	if c.Cycles <= 0 {
		return fmt.Errorf("%w: cycles must be positive, got %d", ErrInvalidConfig, c.Cycles)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if !(c.RangeMin < c.RangeMax) {
		return fmt.Errorf("%w: range min (%g) must be less than range max (%g)", ErrInvalidConfig, c.RangeMin, c.RangeMax)
	}
	if c.SampleDuration < 0 {
		return fmt.Errorf("%w: sample duration cannot be negative", ErrInvalidConfig)
	}
	if c.ListenerQueueSize < 0 {
		return fmt.Errorf("%w: listener queue size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Oscillator repeats a Waveform for a fixed number of cycles.
//
// Samples are consumed either by pulling them with Next or All, or by calling
// Start, which broadcasts one sample per SampleDuration to every listener
// registered with Sync. Once every sample has been produced the oscillator is
// exhausted and cannot be restarted.
type Oscillator struct {
	waveform       Waveform
	cycles         int
	sampleRate     int
	rangeMin       float64
	rangeMax       float64
	sampleDuration time.Duration
	shift          int
	queueSize      int

	mu       sync.Mutex
	position int

	subsMu  sync.Mutex
	subs    []*subscription
	running bool
	closed  bool
	wg      sync.WaitGroup
	done    chan struct{}
}

// subscription feeds one listener from its own queue.
type subscription struct {
	listener Listener
	queue    chan float64
}

// New creates an oscillator.
func New(cfg Config) (*Oscillator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	queueSize := cfg.ListenerQueueSize
	if queueSize == 0 {
		queueSize = DefaultListenerQueueSize
	}

	return &Oscillator{
		waveform:       cfg.Waveform,
		cycles:         cfg.Cycles,
		sampleRate:     cfg.SampleRate,
		rangeMin:       cfg.RangeMin,
		rangeMax:       cfg.RangeMax,
		sampleDuration: cfg.SampleDuration,
		shift:          cfg.HorizontalShift + int(math.Ceil(float64(cfg.SampleRate)/2)),
		queueSize:      queueSize,
		done:           make(chan struct{}),
	}, nil
}

// Waveform returns the shape repeated by the oscillator.
func (o *Oscillator) Waveform() Waveform {
	return o.waveform
}

// Len returns the total number of samples the oscillator produces.
func (o *Oscillator) Len() int {
	return o.cycles * o.sampleRate
}

// Position returns the number of samples produced so far.
func (o *Oscillator) Position() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

// HasNext reports whether samples remain.
func (o *Oscillator) HasNext() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position < o.Len()
}

// Next returns the next sample scaled into the configured range, or
// ErrExhausted when none remain.
func (o *Oscillator) Next() (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.position >= o.Len() {
		return 0, ErrExhausted
	}

	adjusted := (o.position + o.shift) % o.sampleRate
	if adjusted < 0 {
		adjusted += o.sampleRate
	}
	phase := float64(adjusted) / float64(o.sampleRate)
	o.position++

	return o.waveform.Amplitude(phase).Scale(o.rangeMin, o.rangeMax), nil
}

// All returns an iterator over the remaining samples. Ranging over it
// consumes the oscillator.
func (o *Oscillator) All() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for {
			v, err := o.Next()
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Running reports whether Start has been called. It is never reset.
func (o *Oscillator) Running() bool {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	return o.running
}

// Sync registers a listener for broadcast samples. Each listener receives
// every broadcast sample exactly once, in order, from its own goroutine.
// Listeners registered after the broadcast has finished are ignored.
func (o *Oscillator) Sync(l Listener) {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()

	if o.closed {
		klog.V(2).Infof("Ignoring listener registered after %s broadcast finished", o.waveform)
		return
	}

	sub := &subscription{
		listener: l,
		queue:    make(chan float64, o.queueSize),
	}
	o.subs = append(o.subs, sub)

	if o.running {
		o.startSubscription(sub)
	}
}

// Start begins broadcasting samples. The first sample is sent immediately,
// then one per SampleDuration until the oscillator is exhausted or ctx is
// cancelled. Only the first call starts a broadcast; later calls are no-ops.
func (o *Oscillator) Start(ctx context.Context) error {
	if o.sampleDuration <= 0 {
		return fmt.Errorf("%w: sample duration must be positive to broadcast", ErrInvalidConfig)
	}

	o.subsMu.Lock()
	defer o.subsMu.Unlock()

	if o.running {
		return nil
	}
	o.running = true

	for _, sub := range o.subs {
		o.startSubscription(sub)
	}

	o.wg.Add(1)
	go o.broadcast(ctx)

	go func() {
		o.wg.Wait()
		close(o.done)
	}()

	return nil
}

// Done returns a channel that is closed once the broadcast has ended and every
// listener has processed its queued samples.
func (o *Oscillator) Done() <-chan struct{} {
	return o.done
}

// startSubscription must be called with subsMu held.
func (o *Oscillator) startSubscription(sub *subscription) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for v := range sub.queue {
			sub.listener.OnSignalChange(v)
		}
	}()
}

func (o *Oscillator) broadcast(ctx context.Context) {
	defer o.wg.Done()
	defer o.closeSubscriptions()

	ticker := time.NewTicker(o.sampleDuration)
	defer ticker.Stop()

	klog.V(4).Infof("Broadcasting %d %s samples every %v", o.Len(), o.waveform, o.sampleDuration)

	for {
		v, err := o.Next()
		if err != nil {
			klog.V(4).Infof("Broadcast of %s finished", o.waveform)
			return
		}

		o.subsMu.Lock()
		subs := make([]*subscription, len(o.subs))
		copy(subs, o.subs)
		o.subsMu.Unlock()

		klog.V(4).Infof("Broadcasting sample %.2f to %d listeners", v, len(subs))
		for _, sub := range subs {
			select {
			case sub.queue <- v:
			case <-ctx.Done():
				return
			}
		}

		if !o.HasNext() {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			klog.V(4).Infof("Broadcast of %s cancelled: %v", o.waveform, ctx.Err())
			return
		}
	}
}

func (o *Oscillator) closeSubscriptions() {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()

	o.closed = true
	for _, sub := range o.subs {
		close(sub.queue)
	}
}
