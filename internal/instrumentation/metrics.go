package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the tick analytics service.
type Metrics struct {
	TicksProcessed prometheus.Counter
	TicksDropped   *prometheus.CounterVec
	SessionsTotal  *prometheus.CounterVec
	PipelineMs     prometheus.Histogram
	AnomaliesTotal *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_ticks_processed_total",
			Help: "Total number of raw tick records received",
		}),

		TicksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_ticks_dropped_total",
			Help: "Total number of raw tick records dropped by the cleaner, by reason",
		}, []string{"reason"}),

		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_sessions_total",
			Help: "Total number of analyzed sessions, by resulting mode",
		}, []string{"mode"}),

		PipelineMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickflow_pipeline_latency_ms",
			Help:    "End-to-end pipeline latency per session in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),

		AnomaliesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_anomalies_total",
			Help: "Total number of anomaly events emitted, by kind",
		}, []string{"kind"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickflow_errors_total",
			Help: "Total number of errors by component and type",
		}, []string{"component", "error_type"}),
	}
}

// RecordSession records one finished session run.
func (m *Metrics) RecordSession(mode string, latencyMs float64) {
	m.SessionsTotal.WithLabelValues(mode).Inc()
	m.PipelineMs.Observe(latencyMs)
}

// RecordTicks records received and dropped tick counts for one batch.
func (m *Metrics) RecordTicks(received int, droppedByReason map[string]int) {
	m.TicksProcessed.Add(float64(received))
	for reason, n := range droppedByReason {
		if n > 0 {
			m.TicksDropped.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// RecordAnomaly increments the anomaly counter for one event kind.
func (m *Metrics) RecordAnomaly(kind string) {
	m.AnomaliesTotal.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
