package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marine_qc"

// Metrics holds the Prometheus counters, histograms, and gauges for QC runs.
type Metrics struct {
	PipelineRunning     prometheus.Gauge
	PartitionsProcessed *prometheus.CounterVec // labels: status={ok,error}
	PartitionDuration   prometheus.Histogram

	// Engine metrics.
	Outcomes      *prometheus.CounterVec   // labels: table, check, outcome
	StageDuration *prometheus.HistogramVec // labels: stage
	RowsRemoved   prometheus.Counter
	CheckErrors   *prometheus.CounterVec // labels: check

	// Adapter metrics.
	SummariesPublished *prometheus.CounterVec // labels: outcome={success,error}
	ClimatologyCache   *prometheus.CounterVec // labels: result={hit,miss,fallback}
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch of partitions is being processed, 0 otherwise.",
		}),
		PartitionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_processed_total",
			Help:      "Partitions processed by status.",
		}, []string{"status"}),
		PartitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_duration_seconds",
			Help:      "Duration of a complete extract-check-load cycle for one partition.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_outcomes_total",
			Help:      "Check outcomes by table, check and outcome.",
		}, []string{"table", "check", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one QC stage over one partition.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"stage"}),
		RowsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklisted_reports_total",
			Help:      "Header rows removed from checking by the blacklist stage.",
		}),
		CheckErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_errors_total",
			Help:      "Checks that returned an error and were isolated.",
		}, []string{"check"}),
		SummariesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_published_total",
			Help:      "Partition summaries published by outcome.",
		}, []string{"outcome"}),
		ClimatologyCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "climatology_cache_total",
			Help:      "Climatology field lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.PartitionsProcessed,
		m.PartitionDuration,
		m.Outcomes,
		m.StageDuration,
		m.RowsRemoved,
		m.CheckErrors,
		m.SummariesPublished,
		m.ClimatologyCache,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
