// Package output renders waveshaper runs for humans: a header, a live
// calibration line with an eps sparkline, a final summary and oscillator
// previews.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/waveshaper/internal/config"
	"github.com/wesleyorama2/waveshaper/internal/engine"
	"github.com/wesleyorama2/waveshaper/internal/metrics"
)

const (
	clearLine = "\r\033[K"

	// nonInteractiveLines is roughly how many calibration lines are printed
	// per run when the output is not a terminal.
	nonInteractiveLines = 10
)

// ConsoleConfig configures console output.
type ConsoleConfig struct {
	Writer io.Writer

	// Quiet suppresses the header and live updates. The summary is still printed.
	Quiet bool

	// NoColor disables colors even on a terminal.
	NoColor bool

	// ForceColors and ForceTTY override terminal detection, mainly for tests.
	ForceColors bool
	ForceTTY    bool

	// Samples is the number of samples the run will broadcast.
	Samples int

	// RangeMin and RangeMax scale the live sparkline.
	RangeMin float64
	RangeMax float64

	// SparklineWidth is the number of calibrations kept in the live sparkline.
	SparklineWidth int
}

// ConsoleConfigFor derives console settings from a run configuration.
func ConsoleConfigFor(cfg *config.Config) ConsoleConfig {
	return ConsoleConfig{
		Quiet:          cfg.Output.Quiet,
		NoColor:        cfg.Output.NoColor,
		Samples:        cfg.Oscillator.Cycles * cfg.Oscillator.SampleRate,
		RangeMin:       cfg.Oscillator.Range.Min,
		RangeMax:       cfg.Oscillator.Range.Max,
		SparklineWidth: cfg.Output.SparklineWidth,
	}
}

// Console writes human readable run output.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	quiet   bool
	isTTY   bool
	noColor bool
	colors  *ColorScheme
	samples int
	spark   *Sparkline

	seen      int
	liveShown bool
}

// NewConsole creates console output. Without a writer it writes to stdout.
func NewConsole(cfg ConsoleConfig) *Console {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	isTTY := cfg.ForceTTY || isTerminal(w)
	useColors := !cfg.NoColor && (cfg.ForceColors || (isTTY && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = DefaultColorScheme()
	}

	width := cfg.SparklineWidth
	if width <= 0 {
		width = 20
	}

	return &Console{
		w:       w,
		quiet:   cfg.Quiet,
		isTTY:   isTTY,
		noColor: !useColors,
		colors:  colors,
		samples: cfg.Samples,
		spark:   NewSparkline(width, cfg.RangeMin, cfg.RangeMax),
	}
}

// PrintHeader prints what the run is about to do.
func (c *Console) PrintHeader(cfg *config.Config) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	title := "waveshaper"
	if cfg.Name != "" {
		title += " · " + cfg.Name
	}
	fmt.Fprintln(c.w, c.colors.Title.Sprint(title))
	if cfg.Description != "" {
		fmt.Fprintln(c.w, c.colors.Dim.Sprint(cfg.Description))
	}

	osc := cfg.Oscillator
	c.row("Waveform", fmt.Sprintf("%s, %d cycle(s) of %d samples", osc.Waveform, osc.Cycles, osc.SampleRate))
	c.row("Range", fmt.Sprintf("%g to %g permits/s", osc.Range.Min, osc.Range.Max))
	c.row("Duration", fmt.Sprintf("%s (%s per sample)", FormatDuration(osc.TotalDuration()), FormatLatency(time.Duration(osc.SampleDuration))))
	c.row("Limiter", fmt.Sprintf("%s, %d permit(s) per send", cfg.Limiter.Algorithm, cfg.Limiter.Permits))
	c.row("Workers", fmt.Sprintf("%d", cfg.Workers))
	c.row("Sink", sinkLabel(cfg.Sink))
	if cfg.Metrics.Listen != "" {
		c.row("Metrics", "http://"+cfg.Metrics.Listen+"/metrics")
	}
	fmt.Fprintln(c.w)
}

func sinkLabel(s config.SinkConfig) string {
	switch s.Type {
	case "http":
		return fmt.Sprintf("%s %s", s.Method, s.URL)
	case "file":
		return "file " + s.Path
	case "":
		return "discard"
	default:
		return s.Type
	}
}

func (c *Console) row(label, value string) {
	fmt.Fprintf(c.w, "  %s %s\n", c.colors.Label.Sprintf("%-10s", label), c.colors.Value.Sprint(value))
}

// OnCalibration records a limiter calibration and updates the live display.
// It is meant to be registered as an engine calibration hook.
func (c *Console) OnCalibration(cal metrics.Calibration) {
	c.spark.Add(cal.EPS)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++

	if c.quiet {
		return
	}

	line := c.liveLine(cal)
	if c.isTTY {
		fmt.Fprint(c.w, clearLine+line)
		c.liveShown = true
		return
	}

	every := max(c.samples/nonInteractiveLines, 1)
	if c.seen == 1 || c.seen%every == 0 || c.seen == c.samples {
		fmt.Fprintln(c.w, stripANSI(line))
	}
}

func (c *Console) liveLine(cal metrics.Calibration) string {
	progress := fmt.Sprintf("[%*d/%d]", len(fmt.Sprint(c.samples)), c.seen, c.samples)
	return fmt.Sprintf("%s sample %s  rate %s/s  eps %s  %s",
		c.colors.Dim.Sprint(progress),
		c.colors.Value.Sprint(FormatRate(cal.Sample)),
		FormatRate(cal.CommandedRate),
		c.colors.Value.Sprint(FormatRate(cal.EPS)),
		c.colors.Sparkline.Sprint(c.spark.String()),
	)
}

// FinishLive ends the live line so following output starts on a fresh line.
func (c *Console) FinishLive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.liveShown {
		fmt.Fprintln(c.w)
		c.liveShown = false
	}
}

// PrintSummary prints the outcome of a run.
func (c *Console) PrintSummary(r *engine.Result) {
	c.FinishLive()

	c.mu.Lock()
	defer c.mu.Unlock()

	m := r.Metrics
	icon := SuccessIcon(c.noColor)
	status := "Run complete"
	switch {
	case r.Interrupted:
		icon, status = WarningIcon(c.noColor), "Run interrupted"
	case m.FailedSends > 0:
		icon, status = ErrorIcon(c.noColor), "Run complete with failures"
	}

	fmt.Fprintln(c.w)
	fmt.Fprintf(c.w, "%s %s in %s\n", icon, c.colors.Title.Sprint(status), FormatDuration(r.Duration))

	c.row("Waveform", fmt.Sprintf("%s, %d samples in [%g, %g]", r.Waveform, r.Samples, r.RangeMin, r.RangeMax))
	c.row("Sends", fmt.Sprintf("%s ok, %s failed, %s invalid",
		FormatNumber(m.SuccessSends), FormatNumber(m.FailedSends), FormatNumber(m.InvalidPayloads)))
	c.row("Errors", c.colors.ErrorRate(m.ErrorRate).Sprint(FormatPercent(m.ErrorRate)))
	c.row("Throughput", fmt.Sprintf("%s/s overall, %s/s while broadcasting", FormatRate(m.SPS), FormatRate(m.BroadcastSPS)))
	c.row("Bytes", FormatNumber(m.TotalBytes))
	if m.Latency.Count > 0 {
		c.row("Latency", percentiles(m.Latency))
	}
	if m.Wait.Count > 0 {
		c.row("Wait", percentiles(m.Wait))
	}
	if len(r.Calibrations) > 0 {
		c.row("Drift", driftSummary(r.Calibrations))
		values := make([]float64, len(r.Calibrations))
		for i, cal := range r.Calibrations {
			values[i] = cal.EPS
		}
		c.row("EPS", c.colors.Sparkline.Sprint(Render(values, r.RangeMin, r.RangeMax)))
	}
	if r.DroppedCalibrations > 0 {
		c.row("Dropped", c.colors.Warn.Sprintf("%d calibration report(s)", r.DroppedCalibrations))
	}
	if len(r.WorkerPermits) > 0 {
		parts := make([]string, len(r.WorkerPermits))
		for i, wp := range r.WorkerPermits {
			parts[i] = fmt.Sprintf("#%d %s", wp.Worker, FormatNumber(wp.Permits))
		}
		c.row("Permits", strings.Join(parts, "  "))
	}
}

func percentiles(s metrics.LatencyStats) string {
	return fmt.Sprintf("p50 %s  p90 %s  p95 %s  p99 %s  max %s",
		FormatLatency(s.P50), FormatLatency(s.P90), FormatLatency(s.P95),
		FormatLatency(s.P99), FormatLatency(s.Max))
}

// driftSummary reports how far realized eps fell from the commanded rate.
// The first calibration runs before any rate was commanded and is skipped.
func driftSummary(cals []metrics.Calibration) string {
	var sum, worst float64
	n := 0
	for _, cal := range cals[1:] {
		d := cal.Drift()
		if d < 0 {
			d = -d
		}
		sum += d
		worst = max(worst, d)
		n++
	}
	if n == 0 {
		return "n/a"
	}
	return fmt.Sprintf("mean %s/s, worst %s/s", FormatRate(sum/float64(n)), FormatRate(worst))
}

// PrintPreview lists the samples an oscillator would broadcast, with the
// time each one takes effect, followed by their sparkline.
func (c *Console) PrintPreview(samples []float64, lo, hi float64, sampleDuration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	width := len(fmt.Sprint(len(samples)))
	for i, v := range samples {
		at := time.Duration(i) * sampleDuration
		fmt.Fprintf(c.w, "%*d  %8s  %10.2f  %s\n", width, i+1,
			FormatLatency(at), v, c.colors.Sparkline.Sprint(string(Levels[level(v, lo, hi)])))
	}
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.colors.Sparkline.Sprint(Render(samples, lo, hi)))
}
