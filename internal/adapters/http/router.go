package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
	"github.com/kirillkom/tax-law-assistant/internal/observability/metrics"
)

const (
	maxQuestionRunes   = 500
	maxAskBodyBytes    = 256 << 10
	defaultTurnsLimit  = 20
	maxTurnsLimit      = 100
	healthCheckTimeout = 2 * time.Second
)

// Options configures access control and load shedding of the API.
type Options struct {
	APIKey             string
	RequireAPIKey      bool
	RateLimitPerMinute int
	MaxInFlight        int
	BackpressureWait   time.Duration
}

// HealthCheck reports a dependency failure; nil means healthy.
type HealthCheck func(ctx context.Context) error

type Router struct {
	answerer      ports.TaxQuestionAnswerer
	conversations ports.ConversationStore
	metrics       *metrics.HTTPServerMetrics
	health        map[string]HealthCheck
	opts          Options
}

func NewRouter(
	answerer ports.TaxQuestionAnswerer,
	conversations ports.ConversationStore,
	httpMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	return &Router{
		answerer:      answerer,
		conversations: conversations,
		metrics:       httpMetrics,
		health:        make(map[string]HealthCheck),
		opts:          opts,
	}
}

// AddHealthCheck registers a dependency reported by /healthz.
func (rt *Router) AddHealthCheck(name string, check HealthCheck) {
	rt.health[name] = check
}

func (rt *Router) Handler() http.Handler {
	apiKey := ""
	if rt.opts.RequireAPIKey {
		apiKey = rt.opts.APIKey
	}

	var ask http.Handler = http.HandlerFunc(rt.ask)
	ask = backpressureMiddleware(ask, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	ask = authMiddleware(ask, apiKey)
	ask = rateLimitMiddleware(ask, rt.opts.RateLimitPerMinute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /v1/ask", ask)
	if rt.conversations != nil {
		mux.Handle("GET /v1/conversations/{id}/turns", authMiddleware(http.HandlerFunc(rt.listTurns), apiKey))
	}
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

type askRequest struct {
	Question       string           `json:"question"`
	ConversationID string           `json:"conversation_id,omitempty"`
	History        []domain.Message `json:"history,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.health))
	for name, check := range rt.health {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeMessage(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		rt.writeMessage(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		rt.writeMessage(w, r, http.StatusBadRequest, "question is required")
		return
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionRunes {
		rt.writeMessage(w, r, http.StatusBadRequest, "question must be at most "+strconv.Itoa(maxQuestionRunes)+" characters")
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), domain.AskRequest{
		Question:       req.Question,
		ConversationID: strings.TrimSpace(req.ConversationID),
		History:        req.History,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAsk(len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listTurns(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.PathValue("id"))
	if conversationID == "" {
		rt.writeMessage(w, r, http.StatusBadRequest, "conversation id is required")
		return
	}
	limit := defaultTurnsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			rt.writeMessage(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxTurnsLimit)
	}

	turns, err := rt.conversations.ListRecentTurns(r.Context(), conversationID, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"turns":           turns,
	})
}

func (rt *Router) writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

// writeError replies with the client-safe message of err; server-side
// failures are logged with the full error.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reply := mapError(err)
	if reply.status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", reply.status,
			"error", err,
		)
	}
	rt.writeMessage(w, r, reply.status, reply.message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
