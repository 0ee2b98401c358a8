// Package cli implements the waveshaper command line.
package cli

import (
	"errors"
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var version = "0.1.0"

// ErrInterrupted is returned when a run was cancelled by a signal before the
// oscillator finished.
var ErrInterrupted = errors.New("run interrupted")

// NewRootCmd builds the waveshaper command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "waveshaper",
		Short:   "Generate load that follows a waveform",
		Version: version,
		Long: `Waveshaper drives a pool of workers at a permit rate that follows a
sampled waveform (sine, saw, reverse-saw, square or triangle). Every sample
retunes an adaptive rate limiter; workers acquire permits from it and send
scripted payloads to a sink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	root.PersistentFlags().AddGoFlagSet(fs)

	root.AddCommand(newRunCmd())
	root.AddCommand(newPreviewCmd())
	return root
}

// Execute runs the command line and flushes logs.
func Execute() error {
	defer klog.Flush()
	return NewRootCmd().Execute()
}
