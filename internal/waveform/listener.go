package waveform

import (
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Listener receives broadcast samples from an Oscillator.
type Listener interface {
	OnSignalChange(value float64)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(value float64)

// OnSignalChange calls f(value).
func (f ListenerFunc) OnSignalChange(value float64) {
	f(value)
}

// LoggingListener logs every sample it receives.
type LoggingListener struct {
	// Name is included in each log line.
	Name string

	received atomic.Int64
}

// OnSignalChange implements Listener.
func (l *LoggingListener) OnSignalChange(value float64) {
	n := l.received.Add(1)
	klog.Infof("signal %s #%d: %.2f", l.Name, n, value)
}

// Received returns the number of samples logged.
func (l *LoggingListener) Received() int64 {
	return l.received.Load()
}
