// Package waveform provides periodic waveforms and the Oscillator that samples
// them on a schedule and broadcasts each sample to registered listeners.
package waveform

import (
	"fmt"
	"math"
	"strings"
)

// Waveform identifies the shape of a periodic signal.
//
// Each shape is a pure function of a normalized phase in [0, 1) that returns an
// Amplitude in [-1, 1]. The set of shapes is closed.
type Waveform int

const (
	// Sine starts at its minimum at phase 0 and peaks half way through the cycle.
	//
	//	▆██▆▄▂▁▁▂▄▆██▆▄▂▁▁▂▄▆██▆▄▂
	Sine Waveform = iota

	// Saw ramps from -1 toward 1, resetting at the midpoint of the phase.
	//
	//	▁▁▂▃▄▄▅▆▇█▁▁▂▃▄▄▅▆▇█▁▁▂▃▄▄▅▆▇█▁▁
	Saw

	// ReverseSaw mirrors Saw about zero.
	//
	//	█▇▆▅▄▄▃▂▁▁█▇▆▅▄▄▃▂▁▁█▇▆▅▄▄▃▂▁
	ReverseSaw

	// Square is 1 for the first half of the phase and -1 for the second.
	//
	//	▁▁█████▁▁▁▁▁█████▁▁▁▁▁█████▁▁
	Square

	// Triangle rises linearly to 1 at the midpoint and falls back.
	//
	//	▁▂▃▅▆█▆▅▃▂▁▂▃▅▆█▆▅▃▂▁▂▃▅▆█▆▅▃▂▁
	Triangle
)

var waveformNames = map[Waveform]string{
	Sine:       "sine",
	Saw:        "saw",
	ReverseSaw: "reverse-saw",
	Square:     "square",
	Triangle:   "triangle",
}

func (w Waveform) String() string {
	if name, ok := waveformNames[w]; ok {
		return name
	}
	return fmt.Sprintf("waveform(%d)", int(w))
}

// Waveforms returns every supported waveform in declaration order.
func Waveforms() []Waveform {
	return []Waveform{Sine, Saw, ReverseSaw, Square, Triangle}
}

// ParseWaveform returns the waveform with the given name. Matching ignores case
// and accepts "reversesaw" and "reverse_saw" for ReverseSaw.
func ParseWaveform(name string) (Waveform, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	if normalized == "reversesaw" {
		normalized = "reverse-saw"
	}

	for w, n := range waveformNames {
		if n == normalized {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown waveform: %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (w Waveform) MarshalText() ([]byte, error) {
	if _, ok := waveformNames[w]; !ok {
		return nil, fmt.Errorf("unknown waveform: %d", int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Waveform) UnmarshalText(text []byte) error {
	parsed, err := ParseWaveform(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Amplitude returns the height of the waveform at the given phase.
//
// The phase is the distance of the current sample from the beginning of the
// cycle, in [0, 1).
func (w Waveform) Amplitude(phase float64) Amplitude {
	switch w {
	case Sine:
		// 90 degree shift so the wave begins at its minimum
		angle := math.Mod(phase*360.0+90.0, 360.0)
		return Amplitude(math.Sin(angle * math.Pi / 180.0))

	case Saw:
		return Amplitude(saw(phase))

	case ReverseSaw:
		return Amplitude(-saw(phase))

	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1

	case Triangle:
		return Amplitude(1 - 4*math.Abs(roundHalfUp(phase)-phase))

	default:
		return 0
	}
}

func saw(phase float64) float64 {
	return 2 * (phase - roundHalfUp(phase))
}

// roundHalfUp rounds to the nearest integer with ties toward positive
// infinity, so 0.5 rounds to 1.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Amplitude is the height of a waveform, in [-1, 1].
type Amplitude float64

// Value returns the raw amplitude.
func (a Amplitude) Value() float64 {
	return float64(a)
}

// Scale maps the amplitude from [-1, 1] onto [min, max].
func (a Amplitude) Scale(min, max float64) float64 {
	return ((max-min)*float64(a) + max + min) / 2
}

func (a Amplitude) String() string {
	return fmt.Sprintf("%.5f", float64(a))
}
