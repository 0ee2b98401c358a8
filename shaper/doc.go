// Package shaper is the library entry point to waveshaper: oscillators that
// broadcast a sampled waveform, rate limiters that follow them, and a runner
// that drives a worker pool from a configuration.
//
// # Quick Start
//
// Run a configuration file the way the CLI does:
//
//	cfg, _ := shaper.LoadConfig("ramp.yaml")
//	runner, _ := shaper.NewRunner(cfg)
//	result, _ := runner.Run(context.Background())
//
//	fmt.Printf("Sends: %d\n", result.Metrics.TotalSends)
//	fmt.Printf("P95: %v\n", result.Metrics.Latency.P95)
//
// # Shaping Your Own Work
//
// The limiter can pace any loop. Attach retunes it on every sample and
// starts the oscillator:
//
//	osc, _ := shaper.NewOscillator(shaper.OscillatorConfig{
//	    Waveform:       shaper.Sine,
//	    Cycles:         2,
//	    SampleRate:     60,
//	    SampleDuration: time.Second,
//	    RangeMin:       10,
//	    RangeMax:       500,
//	})
//	limiter, _ := shaper.Attach(ctx, osc)
//	defer limiter.Close()
//
//	for limiter.Updating() {
//	    if _, err := limiter.AcquireContext(ctx, 1); err != nil {
//	        break
//	    }
//	    // do one unit of work
//	}
//
// # Previewing a Waveform
//
// Preview returns every sample without broadcasting:
//
//	samples, _ := shaper.Preview(shaper.OscillatorConfig{
//	    Waveform: shaper.Triangle, Cycles: 1, SampleRate: 10, RangeMin: 1, RangeMax: 50,
//	})
package shaper
