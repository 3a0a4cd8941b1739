package metrics

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "sitesync"

// Metrics holds every collector exported by the sync engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	sagaFailures    *prometheus.CounterVec
	refreshSkips    *prometheus.CounterVec
	collectionSize  *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpBytes    *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Requests sent to the document store by table, method and outcome",
			},
			[]string{"table", "method", "outcome"},
		),
		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Document store request latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"table", "method"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Orchestrator commands by result",
			},
			[]string{"command", "result"},
		),
		sagaFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saga_step_failures_total",
				Help:      "Saga steps that aborted a command",
			},
			[]string{"command", "step"},
		),
		refreshSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_items_skipped_total",
				Help:      "Per-item refresh queries that failed and were skipped",
			},
			[]string{"kind"},
		),
		collectionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_records",
				Help:      "Records currently held per entity kind",
			},
			[]string{"kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "devserver_http_requests_total",
				Help:      "Requests served by the development document store",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "devserver_http_response_bytes_total",
				Help:      "Bytes written by the development document store",
			},
			[]string{"method", "endpoint"},
		),
	}

	m.registry.MustRegister(
		m.backendRequests,
		m.backendLatency,
		m.commands,
		m.sagaFailures,
		m.refreshSkips,
		m.collectionSize,
		m.httpRequests,
		m.httpBytes,
	)
	return m
}

// ObserveBackendRequest records one document store round trip
func (m *Metrics) ObserveBackendRequest(table, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.backendRequests.WithLabelValues(table, method, outcome).Inc()
	m.backendLatency.WithLabelValues(table, method).Observe(elapsed.Seconds())
}

// RecordCommand counts a finished orchestrator command
func (m *Metrics) RecordCommand(command string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// RecordSagaFailure counts the step that aborted a saga
func (m *Metrics) RecordSagaFailure(command, step string) {
	if m == nil {
		return
	}
	m.sagaFailures.WithLabelValues(command, step).Inc()
}

// RecordRefreshSkip counts a per-item query dropped during refresh
func (m *Metrics) RecordRefreshSkip(kind string) {
	if m == nil {
		return
	}
	m.refreshSkips.WithLabelValues(kind).Inc()
}

// SetCollectionSize publishes the record count of one kind
func (m *Metrics) SetCollectionSize(kind string, n int) {
	if m == nil {
		return
	}
	m.collectionSize.WithLabelValues(kind).Set(float64(n))
}

// Middleware counts requests and response bytes per route
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		endpoint := r.URL.Path
		m.httpRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		if rw.bytesWritten > 0 {
			m.httpBytes.WithLabelValues(r.Method, endpoint).Add(float64(rw.bytesWritten))
		}
	})
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// WriteText renders all metrics in the Prometheus text exposition format
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

type responseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}
