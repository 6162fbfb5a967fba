package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal      *prometheus.CounterVec
	returnedHits      *prometheus.HistogramVec
	retrievalHitTotal *prometheus.CounterVec
	noContextTotal    *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	runsScheduled     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rageval",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rageval",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total successful retrieval queries by mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	returnedHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rageval",
			Subsystem: "retrieval",
			Name:      "returned_hits",
			Help:      "Distribution of hits returned per successful query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total queries that returned at least one document.",
		},
		[]string{"service", "endpoint"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total queries that returned no documents.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rageval",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	runsScheduled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rageval",
			Subsystem: "runs",
			Name:      "scheduled_total",
			Help:      "Total evaluation runs accepted for execution.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		returnedHits,
		retrievalHitTotal,
		noContextTotal,
		retrievalDuration,
		runsScheduled,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queriesTotal:      queriesTotal,
		returnedHits:      returnedHits,
		retrievalHitTotal: retrievalHitTotal,
		noContextTotal:    noContextTotal,
		retrievalDuration: retrievalDuration,
		runsScheduled:     runsScheduled,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/runs/"):
		return "/v1/runs/{run_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint, mode string, hitCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.queriesTotal.WithLabelValues(service, endpoint, mode).Inc()
	m.returnedHits.WithLabelValues(service, endpoint).Observe(float64(hitCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if hitCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.noContextTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordRunScheduled(service string) {
	m.runsScheduled.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
