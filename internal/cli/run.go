package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/wesleyorama2/waveshaper/internal/engine"
	"github.com/wesleyorama2/waveshaper/internal/output"
	"github.com/wesleyorama2/waveshaper/internal/report"
)

// ErrSendFailures is returned by run --fail-on-error when any send failed.
var ErrSendFailures = errors.New("run had failed sends")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate load that follows a waveform",
		Long: `Run an oscillator, retune the rate limiter on every sample and send
scripted payloads from a pool of workers until the last sample.

Config file mode:
  waveshaper run --config ramp.yaml

Quick CLI mode:
  waveshaper run --waveform saw --min 10 --max 200 \
    --sample-rate 20 --sample-duration 500ms \
    --url http://localhost:8080/ingest

Results:
  waveshaper run -c ramp.yaml --json > result.json
  waveshaper run -c ramp.yaml --output result.yaml
  waveshaper run -c ramp.yaml --html`,
		Args: cobra.NoArgs,
		RunE: runLoad,
	}

	addOscillatorFlags(cmd)
	addRunFlags(cmd)
	cmd.Flags().Bool("json", false, "Write the full result as JSON")
	cmd.Flags().Bool("html", false, "Write an HTML report (to --output or a generated file name)")
	cmd.Flags().String("format", "", "Result format: text, json, yaml, html")
	cmd.Flags().StringP("output", "o", "", "Write the result to this file (format from extension unless --format)")
	cmd.Flags().Bool("fail-on-error", false, "Exit non-zero when any send failed")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, outputPath, err := resultFormat(cmd)
	if err != nil {
		return err
	}

	if format == output.FormatHTML && outputPath == "" {
		outputPath = reportFilename(cfg.Name, time.Now())
	}

	// A machine readable result on stdout keeps the console on stderr.
	consoleOut := cmd.OutOrStdout()
	if format != output.FormatText && outputPath == "" {
		consoleOut = cmd.ErrOrStderr()
	}

	consoleConfig := output.ConsoleConfigFor(cfg)
	consoleConfig.Writer = consoleOut
	console := output.NewConsole(consoleConfig)

	eng, err := engine.NewEngine(cfg, engine.WithCalibrationHook(console.OnCalibration))
	if err != nil {
		return fmt.Errorf("error creating engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.PrintHeader(cfg)
	result, err := eng.Run(ctx)
	if err != nil {
		console.FinishLive()
		return fmt.Errorf("error running load: %w", err)
	}
	console.PrintSummary(result)

	switch format {
	case output.FormatText:
	case output.FormatHTML:
		if err := report.GenerateHTML(result, outputPath); err != nil {
			return fmt.Errorf("error writing HTML report: %w", err)
		}
		fmt.Fprintf(consoleOut, "HTML report written to %s\n", outputPath)
	default:
		if err := writeResult(cmd.OutOrStdout(), outputPath, format, result); err != nil {
			return err
		}
	}

	if result.Interrupted {
		return ErrInterrupted
	}
	if failOnError, _ := cmd.Flags().GetBool("fail-on-error"); failOnError && result.Metrics.FailedSends > 0 {
		return fmt.Errorf("%w: %d of %d", ErrSendFailures, result.Metrics.FailedSends, result.Metrics.TotalSends)
	}
	return nil
}

// resultFormat works out the result format from --json, --format and the
// extension of --output.
func resultFormat(cmd *cobra.Command) (output.OutputFormat, string, error) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	htmlOutput, _ := cmd.Flags().GetBool("html")
	formatName, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	if jsonOutput && htmlOutput {
		return "", "", fmt.Errorf("--json conflicts with --html")
	}
	if jsonOutput {
		if formatName != "" && !strings.EqualFold(formatName, string(output.FormatJSON)) {
			return "", "", fmt.Errorf("--json conflicts with --format %s", formatName)
		}
		formatName = string(output.FormatJSON)
	}
	if htmlOutput {
		if formatName != "" && !strings.EqualFold(formatName, string(output.FormatHTML)) {
			return "", "", fmt.Errorf("--html conflicts with --format %s", formatName)
		}
		formatName = string(output.FormatHTML)
	}

	if formatName == "" && outputPath != "" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".json":
			formatName = string(output.FormatJSON)
		case ".yaml", ".yml":
			formatName = string(output.FormatYAML)
		case ".html", ".htm":
			formatName = string(output.FormatHTML)
		default:
			return "", "", fmt.Errorf("cannot infer result format from %q, use --format", outputPath)
		}
	}

	format, err := output.ParseFormat(formatName)
	if err != nil {
		return "", "", err
	}
	if format == output.FormatText && outputPath != "" {
		return "", "", fmt.Errorf("--output needs a json, yaml or html format")
	}
	return format, outputPath, nil
}

// reportFilename names an HTML report after the run and the time it started.
func reportFilename(name string, now time.Time) string {
	safeName := "run"
	if name != "" {
		safeName = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			case r == ' ':
				return '-'
			default:
				return -1
			}
		}, name)
	}
	return fmt.Sprintf("waveshaper-report-%s-%s.html", safeName, now.Format("20060102-150405"))
}

func writeResult(stdout io.Writer, path string, format output.OutputFormat, result *engine.Result) error {
	if path == "" {
		return output.WriteResult(stdout, format, result)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating result file: %w", err)
	}
	if err := output.WriteResult(f, format, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing result file: %w", err)
	}
	klog.V(2).Infof("Result written to %s", path)
	return nil
}
