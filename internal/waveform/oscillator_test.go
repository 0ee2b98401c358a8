package waveform

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(w Waveform) Config {
	return Config{
		Waveform:   w,
		Cycles:     1,
		SampleRate: 12,
		RangeMin:   1,
		RangeMax:   50,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sampleAll(t *testing.T, cfg Config) []float64 {
	t.Helper()
	osc, err := New(cfg)
	require.NoError(t, err)

	var got []float64
	for v := range osc.All() {
		got = append(got, round2(v))
	}
	return got
}

func TestOscillator_Samples(t *testing.T) {
	tests := []struct {
		name     string
		waveform Waveform
		shift    int
		expected []float64
	}{
		{
			name:     "sine",
			waveform: Sine,
			expected: []float64{1.0, 4.28, 13.25, 25.5, 37.75, 46.72, 50.0, 46.72, 37.75, 25.5, 13.25, 4.28},
		},
		{
			name:     "sine shifted half a cycle",
			waveform: Sine,
			shift:    6,
			expected: []float64{50.0, 46.72, 37.75, 25.5, 13.25, 4.28, 1.0, 4.28, 13.25, 25.5, 37.75, 46.72},
		},
		{
			name:     "saw",
			waveform: Saw,
			expected: []float64{1.0, 5.08, 9.17, 13.25, 17.33, 21.42, 25.5, 29.58, 33.67, 37.75, 41.83, 45.92},
		},
		{
			name:     "reverse saw",
			waveform: ReverseSaw,
			expected: []float64{50.0, 45.92, 41.83, 37.75, 33.67, 29.58, 25.5, 21.42, 17.33, 13.25, 9.17, 5.08},
		},
		{
			name:     "square",
			waveform: Square,
			expected: []float64{1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 50.0, 50.0, 50.0, 50.0, 50.0, 50.0},
		},
		{
			name:     "triangle",
			waveform: Triangle,
			expected: []float64{1.0, 9.17, 17.33, 25.5, 33.67, 41.83, 50.0, 41.83, 33.67, 25.5, 17.33, 9.17},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.waveform)
			cfg.HorizontalShift = tt.shift
			assert.Equal(t, tt.expected, sampleAll(t, cfg))
		})
	}
}

func TestOscillator_NegativeShiftWraps(t *testing.T) {
	cfg := testConfig(Sine)
	cfg.HorizontalShift = -6

	// -6 cancels the half-cycle default, so the first sample is at phase 0
	got := sampleAll(t, cfg)
	require.Len(t, got, 12)
	assert.Equal(t, 50.0, got[0])
	assert.Equal(t, 1.0, got[6])
}

func TestOscillator_Exhaustion(t *testing.T) {
	cfg := testConfig(Triangle)
	cfg.Cycles = 3

	osc, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 36, osc.Len())

	for i := 0; i < 36; i++ {
		require.True(t, osc.HasNext(), "HasNext() false after %d samples", i)
		_, err := osc.Next()
		require.NoError(t, err)
	}

	assert.False(t, osc.HasNext())
	assert.Equal(t, 36, osc.Position())

	_, err = osc.Next()
	assert.True(t, errors.Is(err, ErrExhausted))

	// exhausted oscillators stay exhausted
	assert.Empty(t, slices.Collect(osc.All()))
}

func TestOscillator_AllStopsEarly(t *testing.T) {
	osc, err := New(testConfig(Saw))
	require.NoError(t, err)

	for range osc.All() {
		break
	}
	assert.Equal(t, 1, osc.Position())
}

func TestOscillator_ConcurrentNext(t *testing.T) {
	cfg := testConfig(Sine)
	cfg.Cycles = 100

	osc, err := New(cfg)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := 0
			for {
				if _, err := osc.Next(); err != nil {
					break
				}
				n++
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1200, total)
	assert.Equal(t, 1200, osc.Position())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown waveform", func(c *Config) { c.Waveform = Waveform(99) }},
		{"zero cycles", func(c *Config) { c.Cycles = 0 }},
		{"negative sample rate", func(c *Config) { c.SampleRate = -1 }},
		{"equal range", func(c *Config) { c.RangeMin, c.RangeMax = 5, 5 }},
		{"inverted range", func(c *Config) { c.RangeMin, c.RangeMax = 10, 1 }},
		{"negative duration", func(c *Config) { c.SampleDuration = -time.Second }},
		{"negative queue size", func(c *Config) { c.ListenerQueueSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(DefaultConfig())
	assert.NoError(t, err)
}

type recordingListener struct {
	mu     sync.Mutex
	values []float64
	delay  time.Duration
}

func (r *recordingListener) OnSignalChange(v float64) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recordingListener) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.values)
}

func TestOscillator_Broadcast(t *testing.T) {
	cfg := testConfig(Saw)
	cfg.SampleDuration = 2 * time.Millisecond
	cfg.ListenerQueueSize = 1

	expected := sampleAll(t, cfg)

	osc, err := New(cfg)
	require.NoError(t, err)

	fast := &recordingListener{}
	slow := &recordingListener{delay: 5 * time.Millisecond}
	osc.Sync(fast)
	osc.Sync(slow)

	require.NoError(t, osc.Start(context.Background()))
	assert.True(t, osc.Running())

	select {
	case <-osc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast did not finish")
	}

	for _, l := range []*recordingListener{fast, slow} {
		got := l.snapshot()
		for i := range got {
			got[i] = round2(got[i])
		}
		assert.Equal(t, expected, got, "every listener sees every sample once, in order")
	}

	assert.False(t, osc.HasNext())
	assert.True(t, osc.Running(), "running is never reset")
}

func TestOscillator_StartIsIdempotent(t *testing.T) {
	cfg := testConfig(Square)
	cfg.SampleDuration = time.Millisecond

	osc, err := New(cfg)
	require.NoError(t, err)

	l := &recordingListener{}
	osc.Sync(l)

	for i := 0; i < 3; i++ {
		require.NoError(t, osc.Start(context.Background()))
	}

	<-osc.Done()
	assert.Len(t, l.snapshot(), 12)
}

func TestOscillator_StartRequiresSampleDuration(t *testing.T) {
	osc, err := New(testConfig(Sine))
	require.NoError(t, err)

	err = osc.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, osc.Running())
}

func TestOscillator_StartCancelled(t *testing.T) {
	cfg := testConfig(Sine)
	cfg.Cycles = 1000
	cfg.SampleDuration = time.Millisecond

	osc, err := New(cfg)
	require.NoError(t, err)

	l := &recordingListener{}
	osc.Sync(l)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, osc.Start(ctx))
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-osc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast did not stop after cancellation")
	}

	assert.True(t, osc.HasNext())
	assert.Less(t, len(l.snapshot()), 12000)
}

func TestOscillator_SyncAfterFinish(t *testing.T) {
	cfg := testConfig(Sine)
	cfg.SampleDuration = time.Millisecond

	osc, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, osc.Start(context.Background()))
	<-osc.Done()

	l := &recordingListener{}
	osc.Sync(l)
	assert.Empty(t, l.snapshot())
}

func TestListenerFunc(t *testing.T) {
	var got float64
	var l Listener = ListenerFunc(func(v float64) { got = v })
	l.OnSignalChange(3.5)
	assert.Equal(t, 3.5, got)
}

func TestLoggingListener(t *testing.T) {
	l := &LoggingListener{Name: "test"}
	l.OnSignalChange(1)
	l.OnSignalChange(2)
	assert.Equal(t, int64(2), l.Received())
}
