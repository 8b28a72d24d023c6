package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wave_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for an analysis run.
type Metrics struct {
	RecordsParsed   prometheus.Counter
	RecordsDropped  *prometheus.CounterVec // labels: reason={parse,range}
	RecordsFiltered prometheus.Counter
	UndefinedRows   prometheus.Counter
	RowsWritten     *prometheus.CounterVec // labels: sink={csv,xlsx,sqlite,shapefile}

	// Alignment metrics.
	TrackPoints      *prometheus.CounterVec // labels: outcome={kept,dropped,filtered}
	GridFrames       prometheus.Counter
	WindowsBuilt     prometheus.Counter
	WindowPoints     prometheus.Histogram
	CollocatedPairs  prometheus.Counter
	WindowsPublished *prometheus.CounterVec // labels: sink={kafka,websocket,shapefile}

	StageDuration   *prometheus.HistogramVec // labels: stage={extract,transform,table,align,load}
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.RecordsParsed,
		m.RecordsDropped,
		m.RecordsFiltered,
		m.UndefinedRows,
		m.RowsWritten,
		m.TrackPoints,
		m.GridFrames,
		m.WindowsBuilt,
		m.WindowPoints,
		m.CollocatedPairs,
		m.WindowsPublished,
		m.StageDuration,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectra_parsed_total",
			Help:      help("Spectral records parsed successfully."),
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectra_dropped_total",
			Help:      help("Spectral records dropped, by reason."),
		}, []string{"reason"}),
		RecordsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectra_filtered_total",
			Help:      help("Spectral records outside the region or period."),
		}),
		UndefinedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_undefined_parameters_total",
			Help:      help("Table rows with at least one undefined parameter."),
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_rows_written_total",
			Help:      help("Parameter table rows written, by sink."),
		}, []string{"sink"}),
		TrackPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_points_total",
			Help:      help("Along-track observations read, by outcome."),
		}, []string{"outcome"}),
		GridFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_frames_total",
			Help:      help("Hourly grid frames assembled."),
		}),
		WindowsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_built_total",
			Help:      help("Analysis windows built by alignment."),
		}),
		WindowPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_points",
			Help:      help("Track points per analysis window."),
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		CollocatedPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collocated_pairs_total",
			Help:      help("Track points matched with a grid node."),
		}),
		WindowsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_published_total",
			Help:      help("Analysis windows handed to a sink, by sink."),
		}, []string{"sink"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      help("Duration of each pipeline stage."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while a run is in progress, 0 otherwise."),
		}),
	}
}
