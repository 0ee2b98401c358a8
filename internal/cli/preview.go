package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/waveshaper/internal/output"
	"github.com/wesleyorama2/waveshaper/internal/waveform"
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the samples an oscillator would broadcast",
		Long: `Print every sample of an oscillator configuration, the time it takes
effect and a sparkline of the whole run, without generating any load.

  waveshaper preview --waveform triangle --sample-rate 10 --min 1 --max 50
  waveshaper preview --config ramp.yaml
  waveshaper preview --list`,
		Args: cobra.NoArgs,
		RunE: runPreview,
	}

	addOscillatorFlags(cmd)
	cmd.Flags().Bool("list", false, "List the available waveforms")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, w := range waveform.Waveforms() {
			fmt.Fprintln(cmd.OutOrStdout(), w)
		}
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	oscConfig, err := cfg.Oscillator.WaveformConfig()
	if err != nil {
		return err
	}
	osc, err := waveform.New(oscConfig)
	if err != nil {
		return err
	}
	samples := slices.Collect(osc.All())

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: cfg.Output.NoColor,
	})
	console.PrintPreview(samples, oscConfig.RangeMin, oscConfig.RangeMax, time.Duration(cfg.Oscillator.SampleDuration))
	return nil
}
