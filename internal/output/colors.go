package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title     *color.Color
	Label     *color.Color
	Value     *color.Color
	Good      *color.Color
	Warn      *color.Color
	Bad       *color.Color
	Dim       *color.Color
	Sparkline *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	scheme := newScheme()
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := newScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func newScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.FgCyan, color.Bold),
		Label:     color.New(color.FgWhite),
		Value:     color.New(color.FgWhite, color.Bold),
		Good:      color.New(color.FgGreen, color.Bold),
		Warn:      color.New(color.FgYellow, color.Bold),
		Bad:       color.New(color.FgRed, color.Bold),
		Dim:       color.New(color.Faint),
		Sparkline: color.New(color.FgMagenta),
	}
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Label, s.Value, s.Good, s.Warn, s.Bad, s.Dim, s.Sparkline}
}

// ErrorRate picks the color for an error rate between 0 and 1.
func (s *ColorScheme) ErrorRate(rate float64) *color.Color {
	switch {
	case rate == 0:
		return s.Good
	case rate < 0.05:
		return s.Warn
	default:
		return s.Bad
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return colored(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return colored(color.FgRed).Sprint("✗")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return colored(color.FgYellow).Sprint("⚠")
}

func colored(attr color.Attribute) *color.Color {
	c := color.New(attr)
	c.EnableColor()
	return c
}
