package analyzer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DeusData/declgraph/internal/model"
)

// Metrics are the Prometheus instruments updated by a run.
type Metrics struct {
	FilesAnalyzed prometheus.Counter
	FilesSkipped  prometheus.Counter
	FilesFailed   prometheus.Counter
	Declarations  prometheus.Counter
	Conflicts     prometheus.Gauge
	GraphNodes    prometheus.Gauge
	FileDuration  prometheus.Histogram
	RunDuration   prometheus.Histogram
}

// NewMetrics creates the instruments and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FilesAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Name: "declgraph_files_analyzed_total",
			Help: "Source files parsed and extracted.",
		}),
		FilesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "declgraph_files_skipped_total",
			Help: "Source files excluded by the test-file predicate.",
		}),
		FilesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "declgraph_files_failed_total",
			Help: "Source files that failed to parse.",
		}),
		Declarations: f.NewCounter(prometheus.CounterOpts{
			Name: "declgraph_declarations_total",
			Help: "Top-level declarations extracted.",
		}),
		Conflicts: f.NewGauge(prometheus.GaugeOpts{
			Name: "declgraph_conflicts",
			Help: "Fully-qualified names declared more than once in the last run.",
		}),
		GraphNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "declgraph_graph_nodes",
			Help: "Distinct fully-qualified names in the last finalized graph.",
		}),
		FileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "declgraph_file_seconds",
			Help:    "Time spent analyzing one source file.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "declgraph_run_seconds",
			Help:    "Time spent on a whole analysis run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeFile(r model.AnalysisResult, d time.Duration) {
	if m == nil {
		return
	}
	switch {
	case r.Skipped:
		m.FilesSkipped.Inc()
		return
	case r.ParseError != "":
		m.FilesFailed.Inc()
	default:
		m.FilesAnalyzed.Inc()
	}
	m.Declarations.Add(float64(len(r.Declarations)))
	m.FileDuration.Observe(d.Seconds())
}

func (m *Metrics) observeRun(nodes, conflicts int, d time.Duration) {
	if m == nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.Conflicts.Set(float64(conflicts))
	m.RunDuration.Observe(d.Seconds())
}
