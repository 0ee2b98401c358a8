package output

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColorSchemes(t *testing.T) {
	colored := DefaultColorScheme()
	plain := NoColorScheme()

	for i, c := range colored.all() {
		if c == nil {
			t.Fatalf("DefaultColorScheme color %d is nil", i)
		}
		if got := c.Sprint("x"); !strings.Contains(got, "\033[") {
			t.Errorf("DefaultColorScheme color %d Sprint() = %q, want ANSI codes", i, got)
		}
	}
	for i, c := range plain.all() {
		if got := c.Sprint("x"); got != "x" {
			t.Errorf("NoColorScheme color %d Sprint() = %q, want %q", i, got, "x")
		}
	}
}

func TestErrorRateColor(t *testing.T) {
	s := NoColorScheme()
	tests := []struct {
		rate float64
		want *color.Color
	}{
		{rate: 0, want: s.Good},
		{rate: 0.01, want: s.Warn},
		{rate: 0.5, want: s.Bad},
	}
	for _, tt := range tests {
		if got := s.ErrorRate(tt.rate); got != tt.want {
			t.Errorf("ErrorRate(%v) picked the wrong color", tt.rate)
		}
	}
}

func TestIcons(t *testing.T) {
	tests := []struct {
		name string
		fn   func(bool) string
		want string
	}{
		{"success", SuccessIcon, "✓"},
		{"error", ErrorIcon, "✗"},
		{"warning", WarningIcon, "⚠"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(true); got != tt.want {
				t.Errorf("icon(noColor) = %q, want %q", got, tt.want)
			}
			got := tt.fn(false)
			if !strings.Contains(got, tt.want) || got == tt.want {
				t.Errorf("icon(color) = %q, want colored %q", got, tt.want)
			}
		})
	}
}
