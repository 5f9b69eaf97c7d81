// Package metrics exposes Prometheus instrumentation for detections, external
// lookups, the job queue and the database pool.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/models"
	"go.opentelemetry.io/otel/trace"
)

// Lookup outcomes
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DetectionsTotal   *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	AIProbability     prometheus.Histogram
	LookupRequests    *prometheus.CounterVec
	LookupDuration    *prometheus.HistogramVec
	QueueWait         prometheus.Histogram
	StoredAnalyses    *prometheus.GaugeVec
	DBOpenConnections prometheus.Gauge
	DBInUse           prometheus.Gauge
	DBIdle            prometheus.Gauge
	DBWaitCount       prometheus.Gauge
}

// New registers the collectors on reg under namespace
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DetectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Completed detections by verdict and mode (sync or queue)",
		}, []string{"verdict", "mode"}),
		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analysing a text",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode"}),
		AIProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_probability",
			Help:      "Distribution of final AI probabilities",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		LookupRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_requests_total",
			Help:      "External detection lookups by provider and outcome",
		}, []string{"provider", "outcome"}),
		LookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "External detection lookup latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider"}),
		QueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time a detection job waited in the queue",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		StoredAnalyses: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_analyses",
			Help:      "Persisted analyses by verdict",
		}, []string{"verdict"}),
		DBOpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Open database connections",
		}),
		DBInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Database connections in use",
		}),
		DBIdle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_idle_connections",
			Help:      "Idle database connections",
		}),
		DBWaitCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_wait_count",
			Help:      "Total connections waited for",
		}),
	}
}

// ObserveDetection records a finished analysis. The duration sample carries
// the trace ID as an exemplar when ctx holds a sampled span.
func (m *Metrics) ObserveDetection(ctx context.Context, mode string, result models.AnalysisResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(result.Verdict, mode).Inc()
	m.AIProbability.Observe(float64(result.AIProbability))

	observer := m.AnalysisDuration.WithLabelValues(mode)
	if sc := trace.SpanContextFromContext(ctx); sc.IsSampled() {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(duration.Seconds(), prometheus.Labels{"trace_id": sc.TraceID().String()})
			return
		}
	}
	observer.Observe(duration.Seconds())
}

// ObserveQueueWait records how long a job sat in the queue
func (m *Metrics) ObserveQueueWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.QueueWait.Observe(d.Seconds())
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBOpenConnections.Set(float64(stats.OpenConnections))
	m.DBInUse.Set(float64(stats.InUse))
	m.DBIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// SetStoredAnalyses replaces the per-verdict gauge values
func (m *Metrics) SetStoredAnalyses(counts map[string]int) {
	if m == nil {
		return
	}
	m.StoredAnalyses.Reset()
	for verdict, n := range counts {
		m.StoredAnalyses.WithLabelValues(verdict).Set(float64(n))
	}
}

// InstrumentLookup counts and times every call made through next
func (m *Metrics) InstrumentLookup(provider string, next analyzer.Lookup) analyzer.Lookup {
	if m == nil {
		return next
	}
	return &instrumentedLookup{provider: provider, next: next, metrics: m}
}

type instrumentedLookup struct {
	provider string
	next     analyzer.Lookup
	metrics  *Metrics
}

func (l *instrumentedLookup) DetectAIContent(ctx context.Context, text string) (*models.ExternalAnalysis, error) {
	start := time.Now()
	result, err := l.next.DetectAIContent(ctx, text)
	l.metrics.LookupDuration.WithLabelValues(l.provider).Observe(time.Since(start).Seconds())

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	l.metrics.LookupRequests.WithLabelValues(l.provider, outcome).Inc()
	return result, err
}
