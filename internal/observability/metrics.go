package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crime_report"

// Metrics holds the Prometheus counters, histograms, and gauges for the report job.
type Metrics struct {
	IncidentsRead      prometheus.Counter
	IncidentDuplicates prometheus.Counter
	CodesRead          prometheus.Counter
	CodeDuplicates     prometheus.Counter
	DistrictsReported  prometheus.Gauge
	PipelineRunning    prometheus.Gauge
	LastSuccess        prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IncidentsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_read_total",
			Help:      "Incident rows read from the crimes file.",
		}),
		IncidentDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_duplicates_total",
			Help:      "Exact duplicate incident rows dropped before aggregation.",
		}),
		CodesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_read_total",
			Help:      "Offense code rows read from the codes file.",
		}),
		CodeDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_duplicates_total",
			Help:      "Offense code rows dropped because their code was already seen.",
		}),
		DistrictsReported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "districts_reported",
			Help:      "Rows in the last written report.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the report job is running, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful report.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
}

// Collectors lists every metric so callers can register them on any registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.IncidentsRead,
		m.IncidentDuplicates,
		m.CodesRead,
		m.CodeDuplicates,
		m.DistrictsReported,
		m.PipelineRunning,
		m.LastSuccess,
		m.StageDuration,
	}
}

// WriteTextfile dumps the gathered metrics in the text exposition format,
// for pickup by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
