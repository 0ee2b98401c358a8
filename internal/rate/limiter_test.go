package rate

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBucket returns a fixed wait and a fixed TryReserve answer.
type fakeBucket struct {
	rate  float64
	wait  time.Duration
	allow bool
}

func (b *fakeBucket) Reserve(int) time.Duration { return b.wait }
func (b *fakeBucket) TryReserve(int) bool       { return b.allow }
func (b *fakeBucket) Rate() float64             { return b.rate }

func fakeFactory(created *[]float64) Factory {
	return func(rate float64) Bucket {
		rate = normalizeRate(rate)
		if created != nil {
			*created = append(*created, rate)
		}
		return &fakeBucket{rate: rate, allow: true}
	}
}

// fakeSource is a Source with settable state.
type fakeSource struct {
	running atomic.Bool
	hasNext atomic.Bool
}

func (s *fakeSource) Running() bool { return s.running.Load() }
func (s *fakeSource) HasNext() bool { return s.hasNext.Load() }

func TestWaveformLimiter_InitialRate(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{})
	defer l.Close()

	assert.Equal(t, MinRate, l.Rate())
	assert.Zero(t, l.Snapshot().Calibrations)
}

func TestWaveformLimiter_Recalibrate(t *testing.T) {
	clock := newFakeClock()
	var created []float64
	l := NewWaveformLimiter(&fakeSource{}, WithClock(clock.Now), WithFactory(fakeFactory(&created)))
	defer l.Close()

	// 50 permits over 500ms at the initial rate
	for i := 0; i < 50; i++ {
		require.True(t, l.TryAcquire(1))
	}
	clock.Advance(500 * time.Millisecond)
	l.OnSignalChange(200)

	snap := l.Snapshot()
	assert.Equal(t, 200.0, snap.Sample)
	assert.Equal(t, MinRate, snap.CurrentRate, "current rate is the rate before recalibration")
	assert.InDelta(t, 100.0, snap.EPS, 1e-9)
	assert.InDelta(t, MinRate-100.0, snap.Drift, 1e-9)
	assert.Equal(t, int64(50), snap.Permits)
	assert.Equal(t, 500*time.Millisecond, snap.Elapsed)
	assert.Equal(t, int64(1), snap.Calibrations)
	assert.Equal(t, clock.Now(), snap.At)

	assert.Equal(t, 200.0, l.Rate())
	assert.Zero(t, l.Acquired(), "permits reset on recalibration")

	// the next interval only counts permits issued after the reset
	for i := 0; i < 30; i++ {
		l.Acquire(1)
	}
	clock.Advance(time.Second)
	l.OnSignalChange(75)

	snap = l.Snapshot()
	assert.Equal(t, 200.0, snap.CurrentRate)
	assert.InDelta(t, 30.0, snap.EPS, 1e-9)
	assert.Equal(t, int64(2), snap.Calibrations)

	assert.Equal(t, []float64{MinRate, 200, 75}, created, "a new bucket is created on every sample")
}

func TestWaveformLimiter_ZeroElapsed(t *testing.T) {
	clock := newFakeClock()
	l := NewWaveformLimiter(&fakeSource{}, WithClock(clock.Now), WithFactory(fakeFactory(nil)))
	defer l.Close()

	// two samples within the same millisecond and no permits
	l.OnSignalChange(10)
	assert.Zero(t, l.Snapshot().EPS)

	// permits issued in under a millisecond saturate at permits per millisecond
	for i := 0; i < 3; i++ {
		l.Acquire(1)
	}
	clock.Advance(300 * time.Microsecond)
	l.OnSignalChange(10)

	snap := l.Snapshot()
	assert.Equal(t, 3000.0, snap.EPS)
	assert.False(t, math.IsNaN(snap.EPS))
}

func TestWaveformLimiter_RateNeverBelowMinimum(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{})
	defer l.Close()

	for _, v := range []float64{0, -5, 0.25} {
		l.OnSignalChange(v)
		assert.Equal(t, MinRate, l.Rate(), "sample %v", v)
	}
}

func TestWaveformLimiter_PermitsNormalized(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(fakeFactory(nil)))
	defer l.Close()

	l.Acquire(0)
	l.Acquire(-3)
	require.True(t, l.TryAcquire(0))
	l.Acquire(5)

	assert.Equal(t, int64(8), l.Acquired())
}

func TestWaveformLimiter_TryAcquireCountsOnlySuccess(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(func(rate float64) Bucket {
		return &fakeBucket{rate: rate, allow: false}
	}))
	defer l.Close()

	assert.False(t, l.TryAcquire(1))
	assert.Zero(t, l.Acquired())
}

func TestWaveformLimiter_AcquireReturnsWait(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(func(rate float64) Bucket {
		return &fakeBucket{rate: rate, wait: 20 * time.Millisecond}
	}))
	defer l.Close()

	start := time.Now()
	wait := l.Acquire(1)
	assert.Equal(t, 20*time.Millisecond, wait)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, int64(1), l.Acquired())
}

func TestWaveformLimiter_AcquireContext(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(func(rate float64) Bucket {
		return &fakeBucket{rate: rate, wait: time.Minute}
	}))
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := l.AcquireContext(ctx, 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, l.Acquired(), "cancelled waits are not counted")

	_, err = l.AcquireContext(ctx, 1)
	assert.Error(t, err)
}

func TestWaveformLimiter_Updating(t *testing.T) {
	src := &fakeSource{}
	l := NewWaveformLimiter(src)
	defer l.Close()

	assert.False(t, l.Updating(), "not running")

	src.running.Store(true)
	src.hasNext.Store(true)
	assert.True(t, l.Updating())

	src.hasNext.Store(false)
	assert.False(t, l.Updating(), "exhausted")
}

func TestWaveformLimiter_CallbackLastRegistrationWins(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(fakeFactory(nil)))

	var first, second atomic.Int64
	l.RegisterCallback(func(Snapshot) { first.Add(1) })
	l.RegisterCallback(func(s Snapshot) { second.Add(1) })

	for i := 0; i < 5; i++ {
		l.OnSignalChange(float64(10 + i))
	}
	l.Close()

	assert.Zero(t, first.Load())
	assert.Equal(t, int64(5), second.Load())

	// closing twice is fine and later samples are not delivered
	l.Close()
	l.OnSignalChange(1)
	assert.Equal(t, int64(5), second.Load())
}

func TestWaveformLimiter_SlowCallbackDoesNotBlock(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{}, WithFactory(fakeFactory(nil)), WithNotifyQueueSize(1))

	release := make(chan struct{})
	var delivered atomic.Int64
	l.RegisterCallback(func(Snapshot) {
		<-release
		delivered.Add(1)
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			l.OnSignalChange(float64(i + 1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recalibration blocked on a slow callback")
	}

	assert.Equal(t, int64(10), l.Snapshot().Calibrations)
	close(release)
	l.Close()

	assert.Equal(t, int64(10), delivered.Load()+l.Dropped())
	assert.Positive(t, l.Dropped())
}

func TestWaveformLimiter_LargeAcquireOnFreshBucket(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{})
	defer l.Close()
	l.OnSignalChange(10)

	start := time.Now()
	wait := l.Acquire(20)
	assert.Zero(t, wait, "a fresh bucket grants any request at once")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, l.TryAcquire(1), "the next caller repays the 20 permits")
	assert.Equal(t, int64(20), l.Acquired())
}

func TestWaveformLimiter_TryAcquireManyOnFreshBucket(t *testing.T) {
	l := NewWaveformLimiter(&fakeSource{})
	defer l.Close()
	l.OnSignalChange(10)

	assert.True(t, l.TryAcquire(5))
	assert.Equal(t, int64(5), l.Acquired())
}

func TestWaveformLimiter_MeasuredRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	l := NewWaveformLimiter(&fakeSource{})
	defer l.Close()
	l.OnSignalChange(200)

	start := time.Now()
	for time.Since(start) < 500*time.Millisecond {
		l.Acquire(1)
	}
	l.OnSignalChange(200)

	snap := l.Snapshot()
	assert.Equal(t, 200.0, snap.CurrentRate)
	assert.InDelta(t, 200.0, snap.EPS, 30.0)
}

func TestAttach(t *testing.T) {
	osc, err := waveform.New(waveform.Config{
		Waveform:       waveform.Saw,
		Cycles:         1,
		SampleRate:     10,
		RangeMin:       10,
		RangeMax:       100,
		SampleDuration: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	var snaps []Snapshot
	var mu sync.Mutex

	l, err := Attach(context.Background(), osc, WithCallback(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))
	require.NoError(t, err)

	for l.Updating() {
		l.Acquire(1)
	}

	select {
	case <-osc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("oscillator did not finish")
	}
	l.Close()

	assert.False(t, l.Updating())
	assert.Equal(t, int64(10), l.Snapshot().Calibrations)
	assert.InDelta(t, 91.0, l.Rate(), 1e-9, "rate follows the last saw sample")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 10, "a callback passed at construction sees the first sample")
	assert.Equal(t, 10.0, snaps[0].Sample)
	assert.Equal(t, MinRate, snaps[0].CurrentRate)
}

func TestAttach_RequiresSampleDuration(t *testing.T) {
	osc, err := waveform.New(waveform.DefaultConfig())
	require.NoError(t, err)

	_, err = Attach(context.Background(), osc)
	assert.ErrorIs(t, err, waveform.ErrInvalidConfig)
}
