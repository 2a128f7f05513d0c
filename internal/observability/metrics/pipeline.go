package metrics

import (
	"strconv"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// The methods below make HTTPServerMetrics a ports.PipelineObserver.

func (m *HTTPServerMetrics) ObserveDispatch(source domain.SearchType, results int, err error) {
	if err != nil {
		m.dispatchTotal.WithLabelValues(m.service, source.String(), "error").Inc()
		return
	}
	m.dispatchTotal.WithLabelValues(m.service, source.String(), "ok").Inc()
	m.dispatchHits.WithLabelValues(m.service, source.String()).Observe(float64(results))
}

func (m *HTTPServerMetrics) ObserveGenerationAttempt(attempt domain.GenerationAttempt, state domain.AttemptState) {
	model := attempt.Model
	if model == "" {
		model = "unknown"
	}
	m.attemptsTotal.WithLabelValues(m.service, model, string(attempt.Safety), state.String()).Inc()
}

func (m *HTTPServerMetrics) ObserveCriticVerdict(approved bool, regenerated bool) {
	m.criticTotal.WithLabelValues(m.service, strconv.FormatBool(approved), strconv.FormatBool(regenerated)).Inc()
}

func (m *HTTPServerMetrics) ObserveContextPacked(kept, dropped int) {
	m.contextPacked.WithLabelValues(m.service).Observe(float64(kept))
	if dropped > 0 {
		m.contextDropped.WithLabelValues(m.service).Add(float64(dropped))
	}
}

func (m *HTTPServerMetrics) ObserveAnswer(grounded, safetyFallback bool) {
	m.answersTotal.WithLabelValues(m.service, strconv.FormatBool(grounded), strconv.FormatBool(safetyFallback)).Inc()
}
