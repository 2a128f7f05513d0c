package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// Outcomes of one answer record in the persistence worker.
const (
	RecordPersisted = "persisted"
	RecordRejected  = "rejected"
	RecordFailed    = "failed"
)

// WorkerMetrics instruments the answer persistence consumer. Every series
// carries the service as a constant label.
type WorkerMetrics struct {
	registry *prometheus.Registry

	records   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	lag       prometheus.Histogram
	citations prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "answer_records_total",
			Help:        "Answer records handled by outcome and groundedness.",
			ConstLabels: labels,
		}, []string{"outcome", "grounded"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "answer_record_duration_seconds",
			Help:        "Time spent appending the turns of one answer record.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: labels,
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "answer_records_in_flight",
			Help:        "Answer records currently being persisted.",
			ConstLabels: labels,
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "answer_record_lag_seconds",
			Help:        "Delay between answering a question and persisting its turns.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: labels,
		}),
		citations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "answer_record_citations",
			Help:        "Citations carried by persisted answers.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: labels,
		}),
	}
	registry.MustRegister(m.records, m.duration, m.inFlight, m.lag, m.citations)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BeginRecord marks record in flight and observes its queue lag. The returned
// function completes the measurement with the persistence error.
func (m *WorkerMetrics) BeginRecord(record domain.AnswerRecord) func(err error) {
	if !record.CreatedAt.IsZero() {
		if lag := time.Since(record.CreatedAt); lag >= 0 {
			m.lag.Observe(lag.Seconds())
		}
	}
	m.inFlight.Inc()
	start := time.Now()

	return func(err error) {
		m.inFlight.Dec()
		outcome := recordOutcome(err)
		m.records.WithLabelValues(outcome, strconv.FormatBool(record.Grounded)).Inc()
		m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		if outcome == RecordPersisted {
			m.citations.Observe(float64(len(record.Citations)))
		}
	}
}

func recordOutcome(err error) string {
	switch {
	case err == nil:
		return RecordPersisted
	case domain.IsKind(err, domain.ErrInvalidInput):
		return RecordRejected
	default:
		return RecordFailed
	}
}
