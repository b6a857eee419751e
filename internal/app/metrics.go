package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. Each App owns its own
// registry so tests and concurrent Apps never share counters.
type Metrics struct {
	Registry *prometheus.Registry

	// ExploredNodes is the belief-support count of the latest solve.
	ExploredNodes prometheus.Gauge

	// StageDuration measures each pipeline stage.
	// Labels: stage (reveal, product, explore, solve)
	StageDuration *prometheus.HistogramVec

	// Runs counts finished solves.
	// Labels: result (winning, losing, failed)
	Runs *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ExploredNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aswin",
			Name:      "explored_nodes",
			Help:      "Belief supports explored by the latest solve",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aswin",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aswin",
			Name:      "runs_total",
			Help:      "Finished solves by result",
		}, []string{"result"}),
	}
}

// ObserveStage records one stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile dumps every collector in the Prometheus text format,
// readable by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
