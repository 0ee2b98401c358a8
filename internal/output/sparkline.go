package output

import (
	"strings"
	"sync"
)

// Levels are the sparkline glyphs, lowest first.
var Levels = []rune{'▁', '▂', '▄', '▆', '█'}

// Sparkline keeps the most recent values of a series and renders them as a
// row of glyphs scaled to a fixed range. It is safe for concurrent use.
type Sparkline struct {
	mu        sync.Mutex
	maxLength int
	min, max  float64
	points    []float64
}

// NewSparkline returns a sparkline holding at most maxLength points scaled
// to [lo, hi]. A maxLength below one holds a single point.
func NewSparkline(maxLength int, lo, hi float64) *Sparkline {
	maxLength = max(maxLength, 1)
	return &Sparkline{
		maxLength: maxLength,
		min:       lo,
		max:       hi,
		points:    make([]float64, 0, maxLength),
	}
}

// Add appends v, dropping the oldest point when full.
func (s *Sparkline) Add(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.points) == s.maxLength {
		copy(s.points, s.points[1:])
		s.points[len(s.points)-1] = v
		return
	}
	s.points = append(s.points, v)
}

// Points returns a copy of the retained points, oldest first.
func (s *Sparkline) Points() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.points...)
}

// MaxLength returns the number of points the sparkline retains.
func (s *Sparkline) MaxLength() int {
	return s.maxLength
}

// String renders the retained points.
func (s *Sparkline) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Render(s.points, s.min, s.max)
}

// Render draws values scaled to [lo, hi]. Values outside the range are
// clamped to the lowest or highest glyph.
func Render(values []float64, lo, hi float64) string {
	var b strings.Builder
	b.Grow(len(values) * 3)
	for _, v := range values {
		b.WriteRune(Levels[level(v, lo, hi)])
	}
	return b.String()
}

func level(v, lo, hi float64) int {
	if hi <= lo {
		return 0
	}
	idx := int((v - lo) / (hi - lo) * float64(len(Levels)-1))
	return min(max(idx, 0), len(Levels)-1)
}
