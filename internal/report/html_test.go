package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/waveshaper/internal/engine"
	"github.com/wesleyorama2/waveshaper/internal/metrics"
)

func TestGenerateHTMLString(t *testing.T) {
	result := createSampleResult()

	html, err := GenerateHTMLString(result)
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}

	expectedContents := []string{
		"<!DOCTYPE html>",
		"<title>Sample Ramp - Waveform Run Report</title>",
		"saw, 4 samples in [10, 100]",
		"✓ Complete",
		"Total Sends",
		"1,200",
		"64.00 KB",
		"300.0",
		"calibrationChart",
		"spsChart",
		"latencyChart",
		`"commandedRate":55`,
		`"intervalSPS":48.5`,
		"#2",
	}

	for _, expected := range expectedContents {
		if !strings.Contains(html, expected) {
			t.Errorf("HTML does not contain expected content: %s", expected)
		}
	}
}

func TestGenerateHTMLStringStatus(t *testing.T) {
	failed := createSampleResult()
	failed.Metrics.FailedSends = 3

	interrupted := createSampleResult()
	interrupted.Interrupted = true

	tests := []struct {
		name   string
		result *engine.Result
		want   string
	}{
		{"failures", failed, "✗ Failures"},
		{"interrupted", interrupted, "⚠ Interrupted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := GenerateHTMLString(tt.result)
			if err != nil {
				t.Fatalf("GenerateHTMLString failed: %v", err)
			}
			if !strings.Contains(html, tt.want) {
				t.Errorf("HTML does not contain status %q", tt.want)
			}
		})
	}
}

func TestGenerateHTMLStringNilResult(t *testing.T) {
	if _, err := GenerateHTMLString(nil); err == nil {
		t.Error("Expected error for nil result, got nil")
	}
	if _, err := GenerateHTMLString(&engine.Result{}); err == nil {
		t.Error("Expected error for result without metrics, got nil")
	}
}

func TestGenerateHTML(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.html")

	if err := GenerateHTML(createSampleResult(), outputPath); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if !strings.Contains(string(content), "Sample Ramp") {
		t.Error("Output file does not contain the run name")
	}
}

func TestConvertCalibrationsJSON(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	got, err := convertCalibrationsJSON(start, []metrics.Calibration{
		{Timestamp: start.Add(1500 * time.Millisecond), Sample: 20, CommandedRate: 10, EPS: 9.5, Permits: 10},
	})
	if err != nil {
		t.Fatalf("convertCalibrationsJSON failed: %v", err)
	}
	want := `[{"index":1,"offset":1.5,"sample":20,"commandedRate":10,"eps":9.5,"permits":10}]`
	if got != want {
		t.Errorf("convertCalibrationsJSON() = %s, want %s", got, want)
	}

	empty, _ := convertCalibrationsJSON(start, nil)
	if empty != "[]" {
		t.Errorf("convertCalibrationsJSON(nil) = %s, want []", empty)
	}
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name string
		in   *metrics.Snapshot
		want float64
	}{
		{"nil", nil, 0},
		{"no sends", &metrics.Snapshot{}, 0},
		{"all ok", &metrics.Snapshot{TotalSends: 10, SuccessSends: 10}, 100},
		{"quarter failed", &metrics.Snapshot{TotalSends: 8, SuccessSends: 6}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := successRate(tt.in); got != tt.want {
				t.Errorf("successRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func createSampleResult() *engine.Result {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	return &engine.Result{
		Name:      "Sample Ramp",
		StartTime: start,
		EndTime:   start.Add(4 * time.Second),
		Duration:  4 * time.Second,
		Waveform:  "saw",
		Samples:   4,
		RangeMin:  10,
		RangeMax:  100,
		Workers:   2,
		Metrics: &metrics.Snapshot{
			TotalSends:   1200,
			SuccessSends: 1200,
			TotalBytes:   64 * 1024,
			SPS:          300,
			BroadcastSPS: 310,
			Latency: metrics.LatencyStats{
				Min: time.Millisecond,
				P50: 2 * time.Millisecond,
				P95: 5 * time.Millisecond,
				P99: 8 * time.Millisecond,
				Max: 12 * time.Millisecond,
			},
		},
		Calibrations: []metrics.Calibration{
			{Timestamp: start, Sample: 10},
			{Timestamp: start.Add(time.Second), Sample: 55, CommandedRate: 10, EPS: 10.2, Permits: 10},
			{Timestamp: start.Add(2 * time.Second), Sample: 100, CommandedRate: 55, EPS: 54.1, Permits: 54},
		},
		WorkerPermits: []metrics.WorkerPermits{
			{Worker: 1, Permits: 60},
			{Worker: 2, Permits: 58},
		},
		TimeSeries: []*metrics.TimeBucket{
			{
				Timestamp:     start.Add(time.Second),
				IntervalSends: 48,
				IntervalSPS:   48.5,
				CommandedRate: 55,
				LatencyP50:    2 * time.Millisecond,
				Phase:         metrics.PhaseBroadcasting,
			},
		},
	}
}
