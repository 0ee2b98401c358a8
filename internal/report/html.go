// Package report provides HTML report generation for waveshaper run results.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/wesleyorama2/waveshaper/internal/engine"
	"github.com/wesleyorama2/waveshaper/internal/metrics"
	"github.com/wesleyorama2/waveshaper/internal/output"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*engine.Result
	CalibrationsJSON template.JS
	TimeSeriesJSON   template.JS
}

// CalibrationPoint is one limiter retune as exported to the charts.
type CalibrationPoint struct {
	Index         int     `json:"index"`
	Offset        float64 `json:"offset"`
	Sample        float64 `json:"sample"`
	CommandedRate float64 `json:"commandedRate"`
	EPS           float64 `json:"eps"`
	Permits       int64   `json:"permits"`
}

// TimeSeriesPoint represents a single point in the time series for JSON export.
type TimeSeriesPoint struct {
	Timestamp         string  `json:"timestamp"`
	IntervalSends     int64   `json:"intervalSends"`
	IntervalSPS       float64 `json:"intervalSPS"`
	CommandedRate     float64 `json:"commandedRate"`
	LatencyP50        float64 `json:"latencyP50"`
	LatencyP95        float64 `json:"latencyP95"`
	LatencyP99        float64 `json:"latencyP99"`
	ActiveWorkers     int     `json:"activeWorkers"`
	Phase             string  `json:"phase"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
}

// GenerateHTML generates an HTML report from a run result and writes it to a file.
func GenerateHTML(result *engine.Result, outputPath string) error {
	html, err := GenerateHTMLString(result)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}

// GenerateHTMLString generates an HTML report from a run result and returns it as a string.
func GenerateHTMLString(result *engine.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}
	if result.Metrics == nil {
		return "", fmt.Errorf("result has no metrics")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	calibrationsJSON, err := convertCalibrationsJSON(result.StartTime, result.Calibrations)
	if err != nil {
		return "", fmt.Errorf("failed to convert calibrations: %w", err)
	}

	timeSeriesJSON, err := convertTimeSeriesJSON(result.TimeSeries)
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := ReportData{
		Result:           result,
		CalibrationsJSON: template.JS(calibrationsJSON),
		TimeSeriesJSON:   template.JS(timeSeriesJSON),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// convertCalibrationsJSON exports calibrations with their offset in seconds
// from the start of the run.
func convertCalibrationsJSON(start time.Time, cals []metrics.Calibration) (string, error) {
	if len(cals) == 0 {
		return "[]", nil
	}

	points := make([]CalibrationPoint, len(cals))
	for i, c := range cals {
		offset := 0.0
		if !start.IsZero() && !c.Timestamp.IsZero() {
			offset = c.Timestamp.Sub(start).Seconds()
		}
		points[i] = CalibrationPoint{
			Index:         i + 1,
			Offset:        offset,
			Sample:        c.Sample,
			CommandedRate: c.CommandedRate,
			EPS:           c.EPS,
			Permits:       c.Permits,
		}
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(jsonBytes), nil
}

// convertTimeSeriesJSON converts the time series buckets to JSON for chart
// rendering. Latencies are exported in milliseconds.
func convertTimeSeriesJSON(timeSeries []*metrics.TimeBucket) (string, error) {
	if len(timeSeries) == 0 {
		return "[]", nil
	}

	points := make([]TimeSeriesPoint, len(timeSeries))
	for i, bucket := range timeSeries {
		points[i] = TimeSeriesPoint{
			Timestamp:         bucket.Timestamp.Format(time.RFC3339),
			IntervalSends:     bucket.IntervalSends,
			IntervalSPS:       bucket.IntervalSPS,
			CommandedRate:     bucket.CommandedRate,
			LatencyP50:        millis(bucket.LatencyP50),
			LatencyP95:        millis(bucket.LatencyP95),
			LatencyP99:        millis(bucket.LatencyP99),
			ActiveWorkers:     bucket.ActiveWorkers,
			Phase:             string(bucket.Phase),
			IntervalErrorRate: bucket.IntervalErrorRate,
		}
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(jsonBytes), nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// templateFuncs returns the template helper functions. Values are formatted
// the same way the console summary formats them.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": output.FormatDuration,
		"formatNumber":   output.FormatNumber,
		"formatLatency":  output.FormatLatency,
		"formatBytes":    output.FormatBytes,
		"formatRate":     output.FormatRate,
		"formatPercent":  output.FormatPercent,
		"successRate":    successRate,
		"passed":         passed,
	}
}

// successRate returns the share of accepted sends as a percentage.
func successRate(m *metrics.Snapshot) float64 {
	if m == nil || m.TotalSends == 0 {
		return 0
	}
	return float64(m.SuccessSends) / float64(m.TotalSends) * 100
}

// passed reports whether the run finished without failures or interruption.
func passed(r *engine.Result) bool {
	return !r.Interrupted && r.Metrics != nil && r.Metrics.FailedSends == 0
}
