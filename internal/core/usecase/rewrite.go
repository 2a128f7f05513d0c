package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

const rewritePromptTemplate = `მომხმარებლის ახალი შეკითხვა შეიძლება ეყრდნობოდეს წინა დიალოგს.
გადააკეთე ეს შეკითხვა დამოუკიდებელ, სრულ კითხვად რომელიც საძიებო სისტემას გაუგებს კონტექსტის გარეშე.

მხოლოდ გადაწერილი შეკითხვა დააბრუნე, სხვა არაფერი.

დიალოგის ისტორია:
%s

ახალი შეკითხვა: %s

დამოუკიდებელი შეკითხვა:`

const rewriteHistoryTurns = 4

// QueryRewriter turns follow-up questions into standalone search queries.
type QueryRewriter struct {
	generator ports.TextGenerator
	model     string
	timeout   time.Duration
}

func NewQueryRewriter(generator ports.TextGenerator, model string, timeout time.Duration) *QueryRewriter {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &QueryRewriter{generator: generator, model: model, timeout: timeout}
}

// Rewrite returns the original query when history has fewer than two turns
// or when the call fails, times out or returns nothing.
func (r *QueryRewriter) Rewrite(ctx context.Context, query string, history []domain.Message) string {
	if len(history) < 2 {
		return query
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.generator.Generate(callCtx, domain.GenerationRequest{
		Model:           r.model,
		Messages:        []domain.Message{{Role: domain.RoleUser, Text: fmt.Sprintf(rewritePromptTemplate, formatHistory(history, rewriteHistoryTurns), query)}},
		Temperature:     0.1,
		MaxOutputTokens: 256,
		Safety:          domain.SafetyStrict,
	})
	if err != nil {
		if callCtx.Err() != nil {
			slog.Warn("rewriter_timeout", "query", sanitizeForLog(query))
		} else {
			slog.Error("rewriter_failed", "error", err, "query", sanitizeForLog(query))
		}
		return query
	}

	rewritten := strings.TrimSpace(resp.Text)
	if rewritten == "" {
		slog.Warn("rewriter_empty_response", "original", sanitizeForLog(query))
		return query
	}
	slog.Info("query_rewritten", "original", sanitizeForLog(query), "rewritten", sanitizeForLog(rewritten))
	return rewritten
}

func formatHistory(history []domain.Message, maxTurns int) string {
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := "ასისტენტი"
		if turn.Role == domain.RoleUser {
			role = "მომხმარებელი"
		}
		lines = append(lines, role+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}
