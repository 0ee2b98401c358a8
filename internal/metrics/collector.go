package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Collector exposes run metrics to Prometheus.
type Collector struct {
	registry *prometheus.Registry

	sample        prometheus.Gauge
	commandedRate prometheus.Gauge
	eps           prometheus.Gauge
	drift         prometheus.Gauge
	activeWorkers prometheus.Gauge
	calibrations  prometheus.Counter
	sends         *prometheus.CounterVec
	sendLatency   prometheus.Histogram
	permitWait    prometheus.Histogram
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sample: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waveshaper_oscillator_sample",
			Help: "Most recent sample broadcast by the oscillator",
		}),
		commandedRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waveshaper_limiter_rate",
			Help: "Permits per second the limiter is currently tuned to",
		}),
		eps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waveshaper_limiter_eps",
			Help: "Realized permits per second over the last sample interval",
		}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waveshaper_limiter_drift",
			Help: "Commanded rate minus realized rate over the last sample interval",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waveshaper_active_workers",
			Help: "Number of workers currently producing",
		}),
		calibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waveshaper_limiter_calibrations_total",
			Help: "Monotonic count of limiter recalibrations",
		}),
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waveshaper_sends_total",
				Help: "Monotonic count of payloads handed to the sink",
			},
			[]string{"result"},
		),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveshaper_send_duration_seconds",
			Help:    "Time spent sending one payload",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		permitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveshaper_permit_wait_seconds",
			Help:    "Time spent waiting for a permit",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	for _, m := range []prometheus.Collector{
		c.sample, c.commandedRate, c.eps, c.drift, c.activeWorkers,
		c.calibrations, c.sends, c.sendLatency, c.permitWait,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveCalibration records a limiter recalibration.
func (c *Collector) ObserveCalibration(cal Calibration, rate float64) {
	c.sample.Set(cal.Sample)
	c.commandedRate.Set(rate)
	c.eps.Set(cal.EPS)
	c.drift.Set(cal.Drift())
	c.calibrations.Inc()
}

// ObserveSend records one send. result is "success", "failure" or "invalid".
func (c *Collector) ObserveSend(result string, d time.Duration) {
	c.sends.WithLabelValues(result).Inc()
	if result != "invalid" {
		c.sendLatency.Observe(d.Seconds())
	}
}

// ObserveWait records the time a worker waited for a permit.
func (c *Collector) ObserveWait(d time.Duration) {
	c.permitWait.Observe(d.Seconds())
}

// SetActiveWorkers updates the active worker gauge.
func (c *Collector) SetActiveWorkers(n int) {
	c.activeWorkers.Set(float64(n))
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			klog.Errorf("Metrics server shutdown failed: %v", err)
		}
	}()

	klog.Infof("Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
