package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "citycat_pipeline"

// Metrics holds the Prometheus counters, histograms, and gauges for a pipeline run.
type Metrics struct {
	StageDuration   *prometheus.HistogramVec // labels: stage={prepare,solve,derive,publish}
	StageFailures   *prometheus.CounterVec   // labels: stage
	PipelineRunning prometheus.Gauge

	// Input sizing.
	DomainCells     *prometheus.GaugeVec // labels: kind={valid,total}
	RainfallTotalMM prometheus.Gauge
	VectorFeatures  *prometheus.GaugeVec // labels: layer

	SolverDuration   prometheus.Histogram
	ArtifactsWritten prometheus.Counter
	RunsPublished    *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures by stage.",
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		DomainCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "domain_cells",
			Help:      "Cells in the assembled elevation grid.",
		}, []string{"kind"}),
		RainfallTotalMM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rainfall_total_mm",
			Help:      "Total rainfall depth of the current run.",
		}),
		VectorFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_features",
			Help:      "Features loaded per vector layer.",
		}, []string{"layer"}),
		SolverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_duration_seconds",
			Help:      "Wall-clock duration of the solver process.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}),
		ArtifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Derived artifact files written.",
		}),
		RunsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_published_total",
			Help:      "Run events published by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StageDuration,
		m.StageFailures,
		m.PipelineRunning,
		m.DomainCells,
		m.RainfallTotalMM,
		m.VectorFeatures,
		m.SolverDuration,
		m.ArtifactsWritten,
		m.RunsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
