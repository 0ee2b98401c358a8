package report

// htmlTemplate is the main HTML template for the report
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{if .Name}}{{.Name}}{{else}}waveshaper{{end}} - Waveform Run Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --bg-card: #ffffff;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --text-muted: #94a3b8;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        [data-theme="dark"] {
            --bg-primary: #0f172a;
            --bg-secondary: #1e293b;
            --bg-card: #1e293b;
            --text-primary: #f1f5f9;
            --text-secondary: #94a3b8;
            --text-muted: #64748b;
            --border-color: #334155;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.3);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        .header {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 2rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
            display: flex;
            justify-content: space-between;
            align-items: center;
            flex-wrap: wrap;
            gap: 1rem;
        }
        .header h1 { font-size: 1.75rem; font-weight: 700; }
        .header .description { color: var(--text-secondary); font-size: 0.95rem; }
        .header .meta { display: flex; gap: 2rem; margin-top: 0.75rem; font-size: 0.875rem; color: var(--text-muted); }

        .status { padding: 0.75rem 1.5rem; border-radius: 8px; font-weight: 600; }
        .status.pass { background-color: rgba(34, 197, 94, 0.1); color: var(--accent-success); }
        .status.fail { background-color: rgba(239, 68, 68, 0.1); color: var(--accent-error); }

        .theme-toggle {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 0.5rem;
            cursor: pointer;
            color: var(--text-secondary);
        }

        .metrics-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .metric-card { background: var(--bg-card); border-radius: 12px; padding: 1.5rem; box-shadow: var(--shadow); }
        .metric-card .label { font-size: 0.75rem; text-transform: uppercase; color: var(--text-muted); }
        .metric-card .value { font-size: 1.75rem; font-weight: 700; }
        .metric-card .unit { font-size: 0.875rem; color: var(--text-secondary); margin-left: 0.25rem; }

        .section { background: var(--bg-card); border-radius: 12px; padding: 1.5rem; margin-bottom: 2rem; box-shadow: var(--shadow); }
        .section-title { font-size: 1.125rem; font-weight: 600; margin-bottom: 1.5rem; }

        .latency-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; }
        .latency-item { text-align: center; padding: 1rem; background: var(--bg-secondary); border-radius: 8px; }
        .latency-item .percentile { font-size: 0.75rem; text-transform: uppercase; color: var(--text-muted); }
        .latency-item .time { font-size: 1.25rem; font-weight: 600; }

        .chart-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(450px, 1fr)); gap: 1.5rem; }
        .chart-title { font-size: 0.875rem; font-weight: 600; color: var(--text-secondary); margin-bottom: 1rem; }
        .chart-wrapper { position: relative; height: 250px; }

        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: right; padding: 0.4rem 0.75rem; border-bottom: 1px solid var(--border-color); }
        th:first-child, td:first-child { text-align: left; }

        .footer { text-align: center; color: var(--text-muted); font-size: 0.75rem; padding: 1rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <div>
            <h1>{{if .Name}}{{.Name}}{{else}}waveshaper run{{end}}</h1>
            {{if .Description}}<div class="description">{{.Description}}</div>{{end}}
            <div class="meta">
                <span>{{.Waveform}}, {{.Samples}} samples in [{{.RangeMin}}, {{.RangeMax}}]</span>
                <span>{{.Workers}} workers</span>
                <span>{{.StartTime.Format "2006-01-02 15:04:05"}}</span>
                <span>{{formatDuration .Duration}}</span>
            </div>
        </div>
        <div>
            {{if passed .Result}}
            <span class="status pass">✓ Complete</span>
            {{else if .Interrupted}}
            <span class="status fail">⚠ Interrupted</span>
            {{else}}
            <span class="status fail">✗ Failures</span>
            {{end}}
            <button class="theme-toggle" onclick="toggleTheme()">◐</button>
        </div>
    </div>

    <div class="metrics-grid">
        <div class="metric-card">
            <div class="label">Total Sends</div>
            <div class="value">{{formatNumber .Metrics.TotalSends}}</div>
        </div>
        <div class="metric-card">
            <div class="label">Success Rate</div>
            <div class="value">{{printf "%.2f" (successRate .Metrics)}}<span class="unit">%</span></div>
        </div>
        <div class="metric-card">
            <div class="label">Throughput</div>
            <div class="value">{{formatRate .Metrics.SPS}}<span class="unit">/s</span></div>
        </div>
        <div class="metric-card">
            <div class="label">While Broadcasting</div>
            <div class="value">{{formatRate .Metrics.BroadcastSPS}}<span class="unit">/s</span></div>
        </div>
        <div class="metric-card">
            <div class="label">Error Rate</div>
            <div class="value">{{formatPercent .Metrics.ErrorRate}}</div>
        </div>
        <div class="metric-card">
            <div class="label">Invalid Payloads</div>
            <div class="value">{{formatNumber .Metrics.InvalidPayloads}}</div>
        </div>
        <div class="metric-card">
            <div class="label">Bytes Sent</div>
            <div class="value">{{formatBytes .Metrics.TotalBytes}}</div>
        </div>
    </div>

    <div class="section">
        <div class="section-title">Send Latency</div>
        <div class="latency-grid">
            <div class="latency-item"><div class="percentile">Min</div><div class="time">{{formatLatency .Metrics.Latency.Min}}</div></div>
            <div class="latency-item"><div class="percentile">P50</div><div class="time">{{formatLatency .Metrics.Latency.P50}}</div></div>
            <div class="latency-item"><div class="percentile">P90</div><div class="time">{{formatLatency .Metrics.Latency.P90}}</div></div>
            <div class="latency-item"><div class="percentile">P95</div><div class="time">{{formatLatency .Metrics.Latency.P95}}</div></div>
            <div class="latency-item"><div class="percentile">P99</div><div class="time">{{formatLatency .Metrics.Latency.P99}}</div></div>
            <div class="latency-item"><div class="percentile">Max</div><div class="time">{{formatLatency .Metrics.Latency.Max}}</div></div>
        </div>
    </div>

    <div class="section">
        <div class="section-title">Permit Wait</div>
        <div class="latency-grid">
            <div class="latency-item"><div class="percentile">P50</div><div class="time">{{formatLatency .Metrics.Wait.P50}}</div></div>
            <div class="latency-item"><div class="percentile">P95</div><div class="time">{{formatLatency .Metrics.Wait.P95}}</div></div>
            <div class="latency-item"><div class="percentile">P99</div><div class="time">{{formatLatency .Metrics.Wait.P99}}</div></div>
            <div class="latency-item"><div class="percentile">Max</div><div class="time">{{formatLatency .Metrics.Wait.Max}}</div></div>
        </div>
    </div>

    <div class="section">
        <div class="section-title">Waveform Tracking</div>
        <div class="chart-grid">
            <div>
                <div class="chart-title">Sample, commanded rate and realized eps per calibration</div>
                <div class="chart-wrapper"><canvas id="calibrationChart"></canvas></div>
            </div>
            <div>
                <div class="chart-title">Sends per second</div>
                <div class="chart-wrapper"><canvas id="spsChart"></canvas></div>
            </div>
            <div>
                <div class="chart-title">Latency percentiles (ms)</div>
                <div class="chart-wrapper"><canvas id="latencyChart"></canvas></div>
            </div>
        </div>
    </div>

    {{if .WorkerPermits}}
    <div class="section">
        <div class="section-title">Permits per Worker</div>
        <table>
            <tr><th>Worker</th><th>Permits</th></tr>
            {{range .WorkerPermits}}<tr><td>#{{.Worker}}</td><td>{{formatNumber .Permits}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <div class="footer">Generated by waveshaper{{if .DroppedCalibrations}} · {{.DroppedCalibrations}} calibration report(s) dropped{{end}}</div>
</div>

<script>
    const calibrations = {{.CalibrationsJSON}};
    const timeSeries = {{.TimeSeriesJSON}};

    function toggleTheme() {
        const html = document.documentElement;
        const next = html.getAttribute('data-theme') === 'dark' ? 'light' : 'dark';
        html.setAttribute('data-theme', next);
        localStorage.setItem('theme', next);
    }
    if (localStorage.getItem('theme') === 'dark') {
        document.documentElement.setAttribute('data-theme', 'dark');
    }

    const colors = {
        primary: '#3b82f6',
        success: '#22c55e',
        warning: '#f59e0b',
        error: '#ef4444',
        purple: '#8b5cf6',
    };

    const commonOptions = {
        responsive: true,
        maintainAspectRatio: false,
        interaction: { mode: 'index', intersect: false },
        plugins: { legend: { position: 'bottom' } },
        scales: { y: { beginAtZero: true } },
    };

    function line(label, data, color, extra) {
        return Object.assign({
            label: label,
            data: data,
            borderColor: color,
            backgroundColor: 'transparent',
            tension: 0.3,
            pointRadius: 0,
            borderWidth: 2,
        }, extra || {});
    }

    new Chart(document.getElementById('calibrationChart').getContext('2d'), {
        type: 'line',
        data: {
            labels: calibrations.map(c => c.offset.toFixed(1) + 's'),
            datasets: [
                line('Sample', calibrations.map(c => c.sample), colors.purple, { stepped: true }),
                line('Commanded', calibrations.map(c => c.commandedRate), colors.warning, { stepped: true }),
                line('Realized eps', calibrations.map(c => c.eps), colors.primary),
            ]
        },
        options: commonOptions
    });

    const labels = timeSeries.map(p => new Date(p.timestamp).toLocaleTimeString());

    new Chart(document.getElementById('spsChart').getContext('2d'), {
        type: 'line',
        data: {
            labels: labels,
            datasets: [
                line('Sends/sec', timeSeries.map(p => p.intervalSPS), colors.primary, { fill: true, backgroundColor: colors.primary + '20' }),
                line('Commanded', timeSeries.map(p => p.commandedRate), colors.warning, { stepped: true }),
            ]
        },
        options: commonOptions
    });

    new Chart(document.getElementById('latencyChart').getContext('2d'), {
        type: 'line',
        data: {
            labels: labels,
            datasets: [
                line('P50', timeSeries.map(p => p.latencyP50), colors.success),
                line('P95', timeSeries.map(p => p.latencyP95), colors.warning),
                line('P99', timeSeries.map(p => p.latencyP99), colors.error),
            ]
        },
        options: commonOptions
    });
</script>
</body>
</html>
`
