package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runInFlight prometheus.Gauge
	queueLag    *prometheus.HistogramVec

	sink *RunSink
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "worker",
			Name:      "run_total",
			Help:      "Total executed evaluation runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rageval",
			Subsystem: "worker",
			Name:      "run_duration_seconds",
			Help:      "Evaluation run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rageval",
			Subsystem: "worker",
			Name:      "run_in_flight",
			Help:      "Number of evaluation runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rageval",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between run scheduling and execution start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	sink := newRunSink(service)

	registry.MustRegister(runTotal, runDuration, runInFlight, queueLag, sink.experimentMetric)

	return &WorkerMetrics{
		registry:    registry,
		runTotal:    runTotal,
		runDuration: runDuration,
		runInFlight: runInFlight,
		queueLag:    queueLag,
		sink:        sink,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExperimentSink exposes per-run evaluation metrics on the worker's
// scrape endpoint.
func (m *WorkerMetrics) ExperimentSink() *RunSink {
	return m.sink
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
