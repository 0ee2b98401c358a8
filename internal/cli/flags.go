package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/waveshaper/internal/config"
)

// addOscillatorFlags registers the flags shared by run and preview.
func addOscillatorFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().StringP("waveform", "w", "", "Waveform: sine, saw, reverse-saw, square, triangle")
	cmd.Flags().Int("cycles", 0, "Number of waveform cycles")
	cmd.Flags().Int("sample-rate", 0, "Samples per cycle")
	cmd.Flags().String("sample-duration", "", "Time between samples (e.g. 250ms, or seconds)")
	cmd.Flags().Float64("min", 0, "Lowest permit rate per second")
	cmd.Flags().Float64("max", 0, "Highest permit rate per second")
	cmd.Flags().Int("shift", 0, "Horizontal shift in samples")
}

// addRunFlags registers the flags that only matter when generating load.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "Number of workers")
	cmd.Flags().String("algorithm", "", "Limiter algorithm: token-bucket, leaky-bucket")
	cmd.Flags().Float64("max-burst", 0, "Seconds of permits the token bucket may store")
	cmd.Flags().Int("permits", 0, "Permits acquired per send")

	cmd.Flags().String("sink", "", "Sink type: discard, stdout, file, http")
	cmd.Flags().String("url", "", "Target URL for the http sink")
	cmd.Flags().String("method", "", "HTTP method for the http sink")
	cmd.Flags().StringArrayP("header", "H", nil, "HTTP header 'Name: value' (repeatable)")
	cmd.Flags().String("timeout", "", "HTTP request timeout")
	cmd.Flags().String("ack-path", "", "JSON path that must exist in every HTTP response")
	cmd.Flags().String("path", "", "Output file for the file sink")
	cmd.Flags().Bool("append", false, "Append to the file sink instead of truncating")

	cmd.Flags().String("schema-file", "", "JSON schema every payload must satisfy")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().String("bucket-interval", "", "Time series bucket interval")

	cmd.Flags().BoolP("quiet", "q", false, "Disable live output, show only the final summary")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
}

// loadConfig reads --config, if set, and applies every flag the user
// changed on top of it. The result has defaults applied and is validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		cfg = loaded
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	osc := &cfg.Oscillator
	if changed("waveform") {
		osc.Waveform, _ = flags.GetString("waveform")
	}
	if changed("cycles") {
		osc.Cycles, _ = flags.GetInt("cycles")
	}
	if changed("sample-rate") {
		osc.SampleRate, _ = flags.GetInt("sample-rate")
	}
	if changed("sample-duration") {
		if err := durationFlag(cmd, "sample-duration", &osc.SampleDuration); err != nil {
			return err
		}
	}
	if changed("min") {
		osc.Range.Min, _ = flags.GetFloat64("min")
	}
	if changed("max") {
		osc.Range.Max, _ = flags.GetFloat64("max")
	}
	if changed("shift") {
		osc.HorizontalShift, _ = flags.GetInt("shift")
	}

	if changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if changed("algorithm") {
		cfg.Limiter.Algorithm, _ = flags.GetString("algorithm")
	}
	if changed("max-burst") {
		cfg.Limiter.MaxBurst, _ = flags.GetFloat64("max-burst")
	}
	if changed("permits") {
		cfg.Limiter.Permits, _ = flags.GetInt("permits")
	}

	snk := &cfg.Sink
	if changed("sink") {
		snk.Type, _ = flags.GetString("sink")
	}
	if changed("url") {
		snk.URL, _ = flags.GetString("url")
		if !changed("sink") && (snk.Type == "" || snk.Type == "discard") {
			snk.Type = "http"
		}
	}
	if changed("method") {
		snk.Method, _ = flags.GetString("method")
	}
	if changed("header") {
		headers, _ := flags.GetStringArray("header")
		if snk.Headers == nil {
			snk.Headers = make(map[string]string, len(headers))
		}
		for _, h := range headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return fmt.Errorf("invalid header %q, want 'Name: value'", h)
			}
			snk.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if changed("timeout") {
		if err := durationFlag(cmd, "timeout", &snk.Timeout); err != nil {
			return err
		}
	}
	if changed("ack-path") {
		snk.AckPath, _ = flags.GetString("ack-path")
	}
	if changed("path") {
		snk.Path, _ = flags.GetString("path")
		if !changed("sink") && (snk.Type == "" || snk.Type == "discard") {
			snk.Type = "file"
		}
	}
	if changed("append") {
		snk.Append, _ = flags.GetBool("append")
	}

	if changed("schema-file") {
		cfg.Payload.SchemaFile, _ = flags.GetString("schema-file")
		cfg.Payload.Schema = ""
	}
	if changed("metrics-addr") {
		cfg.Metrics.Listen, _ = flags.GetString("metrics-addr")
	}
	if changed("bucket-interval") {
		if err := durationFlag(cmd, "bucket-interval", &cfg.Metrics.BucketInterval); err != nil {
			return err
		}
	}

	if changed("quiet") {
		cfg.Output.Quiet, _ = flags.GetBool("quiet")
	}
	if changed("no-color") {
		cfg.Output.NoColor, _ = flags.GetBool("no-color")
	}
	return nil
}

func durationFlag(cmd *cobra.Command, name string, dst *config.Duration) error {
	s, _ := cmd.Flags().GetString(name)
	d, err := config.ParseDurationString(s)
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", name, err)
	}
	*dst = config.Duration(d)
	return nil
}
