package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the VD
// archive pipeline.
type Metrics struct {
	SlotsFetched    prometheus.Counter
	SlotsAbandoned  *prometheus.CounterVec // label: outcome={too-small,transport-error}
	FetchRetries    prometheus.Counter
	CorruptPayloads prometheus.Counter

	DecompressErrors prometheus.Counter
	ParseErrors      prometheus.Counter
	SnapshotsParsed  prometheus.Counter
	SeriesWritten    prometheus.Counter

	FetchDuration prometheus.Histogram
	ParseDuration prometheus.Histogram
	DayDuration   prometheus.Histogram

	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SlotsFetched,
		m.SlotsAbandoned,
		m.FetchRetries,
		m.CorruptPayloads,
		m.DecompressErrors,
		m.ParseErrors,
		m.SnapshotsParsed,
		m.SeriesWritten,
		m.FetchDuration,
		m.ParseDuration,
		m.DayDuration,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SlotsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "slots_fetched_total",
			Help:      "Minute slots whose compressed payload was acquired and size-validated.",
		}),
		SlotsAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "slots_abandoned_total",
			Help:      "Minute slots given up after the retry budget, by terminal outcome.",
		}, []string{"outcome"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts beyond the first, across all slots.",
		}),
		CorruptPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "corrupt_payloads_total",
			Help:      "Responses rejected for being below the minimum payload size.",
		}),
		DecompressErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "decompress_errors_total",
			Help:      "Minutes dropped because their payload failed to inflate.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "parse_errors_total",
			Help:      "Minutes dropped because their document failed to parse.",
		}),
		SnapshotsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "snapshots_parsed_total",
			Help:      "Detector snapshots extracted across all minutes.",
		}),
		SeriesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vd_etl",
			Name:      "series_written_total",
			Help:      "Per-detector output tables written.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vd_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one slot's fetch including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vd_etl",
			Name:      "parse_duration_seconds",
			Help:      "Duration of one minute's decompress and parse.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		DayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vd_etl",
			Name:      "day_duration_seconds",
			Help:      "Duration of a complete day pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vd_etl",
			Name:      "pipeline_running",
			Help:      "1 while a day is being processed, 0 otherwise.",
		}),
	}
}
