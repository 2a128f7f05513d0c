package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

var _ ports.PipelineObserver = (*HTTPServerMetrics)(nil)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Fatalf("metrics output missing %q", w)
		}
	}
}

func TestMiddlewareRecordsStatusAndNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, path := range []string{"/v1/ask", "/random/1", "/random/2"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	assertContains(t, scrape(t, m.Handler()),
		`tax_http_requests_total{method="POST",path="/v1/ask",service="api",status="418"} 1`,
		`tax_http_requests_total{method="POST",path="other",service="api",status="418"} 2`,
	)
}

func TestPipelineObserverCounters(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.ObserveDispatch(domain.SearchSemantic, 4, nil)
	m.ObserveDispatch(domain.SearchKeyword, 0, errors.New("db down"))
	m.ObserveGenerationAttempt(domain.GenerationAttempt{Model: "gemini-2.5-flash", Safety: domain.SafetyRelaxed}, domain.AttemptBlocked)
	m.ObserveCriticVerdict(false, true)
	m.ObserveContextPacked(3, 2)
	m.ObserveAnswer(true, false)

	assertContains(t, scrape(t, m.Handler()),
		`tax_retrieval_dispatch_total{service="api",source="semantic",status="ok"} 1`,
		`tax_retrieval_dispatch_total{service="api",source="keyword",status="error"} 1`,
		`tax_retrieval_dispatch_results_sum{service="api",source="semantic"} 4`,
		`tax_llm_generation_attempts_total{model="gemini-2.5-flash",safety="relaxed",service="api",state="blocked"} 1`,
		`tax_critic_verdicts_total{approved="false",regenerated="true",service="api"} 1`,
		`tax_rag_context_dropped_total{service="api"} 2`,
		`tax_rag_answers_total{grounded="true",safety_fallback="false",service="api"} 1`,
	)
}

func TestResilienceHooksAreExported(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRetry("gemini.generate", 1)
	m.RecordBreakerStateChange("gemini.generate", gobreaker.StateClosed, gobreaker.StateOpen)
	m.RecordAsk(2, 1500*time.Millisecond)

	assertContains(t, scrape(t, m.Handler()),
		`tax_resilience_retries_total{operation="gemini.generate",service="api"} 1`,
		`tax_resilience_breaker_transitions_total{operation="gemini.generate",service="api",to="open"} 1`,
		`tax_rag_ask_duration_seconds_count{service="api"} 1`,
	)
}

func TestWorkerMetricsRecordOutcomes(t *testing.T) {
	m := NewWorkerMetrics("worker")
	record := domain.AnswerRecord{
		ConversationID: "conv-1",
		Grounded:       true,
		Citations:      []domain.Citation{{ID: 1, ArticleNumber: 166}, {ID: 2, ArticleNumber: 81}},
		CreatedAt:      time.Now().Add(-time.Second),
	}
	m.BeginRecord(record)(nil)
	m.BeginRecord(record)(errors.New("db down"))
	m.BeginRecord(domain.AnswerRecord{CreatedAt: time.Now().Add(time.Hour)})(domain.WrapError(domain.ErrInvalidInput, "record", errors.New("empty")))

	assertContains(t, scrape(t, m.Handler()),
		`tax_worker_answer_records_total{grounded="true",outcome="persisted",service="worker"} 1`,
		`tax_worker_answer_records_total{grounded="true",outcome="failed",service="worker"} 1`,
		`tax_worker_answer_records_total{grounded="false",outcome="rejected",service="worker"} 1`,
		`tax_worker_answer_records_in_flight{service="worker"} 0`,
		`tax_worker_answer_record_citations_sum{service="worker"} 2`,
		`tax_worker_answer_record_lag_seconds_count{service="worker"} 2`,
	)
}
