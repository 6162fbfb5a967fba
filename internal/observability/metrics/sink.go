package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// RunSink publishes completed-run evaluation metrics as gauges, one
// series per run and metric name. Run names are few per deployment, so
// the label cardinality stays bounded in practice.
type RunSink struct {
	experimentMetric *prometheus.GaugeVec
}

func newRunSink(service string) *RunSink {
	experimentMetric := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rageval",
			Subsystem: "experiment",
			Name:      "metric",
			Help:      "Latest value of each evaluation metric per run.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"run", "metric"},
	)
	return &RunSink{experimentMetric: experimentMetric}
}

func (s *RunSink) Publish(_ context.Context, run string, values map[string]float64) error {
	for name, value := range values {
		s.experimentMetric.WithLabelValues(run, name).Set(value)
	}
	return nil
}
