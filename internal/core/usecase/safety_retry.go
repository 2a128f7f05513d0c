package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

// SafetyFallbackMessage is returned when no attempt produced an answer.
const SafetyFallbackMessage = "ბოდიშს გიხდით, ამ მომენტში ვერ ვპასუხობ თქვენს შეკითხვას. " +
	"გთხოვთ, სცადოთ შეკითხვის გადაფორმულირება ან მიმართოთ rs.ge ვებგვერდს."

// AttemptRecord is the terminal state of one executed attempt.
type AttemptRecord struct {
	Attempt domain.GenerationAttempt
	State   domain.AttemptState
	Reason  string
}

// GenerationOutcome is the result of driving the retry state machine.
type GenerationOutcome struct {
	Text           string
	Grounded       bool
	SafetyFallback bool
	Attempts       []AttemptRecord
}

// SafetyRetryController walks a fixed list of (model, strictness) attempts
// and stops at the first successful generation.
type SafetyRetryController struct {
	generator    ports.TextGenerator
	observer     ports.PipelineObserver
	attempts     []domain.GenerationAttempt
	retryEnabled bool
}

// SafetyAttempts returns the standard matrix: primary model strict, primary
// model relaxed, backup model strict.
func SafetyAttempts(primaryModel, backupModel string) []domain.GenerationAttempt {
	return []domain.GenerationAttempt{
		{Model: primaryModel, Safety: domain.SafetyStrict},
		{Model: primaryModel, Safety: domain.SafetyRelaxed},
		{Model: backupModel, Safety: domain.SafetyStrict},
	}
}

func NewSafetyRetryController(
	generator ports.TextGenerator,
	observer ports.PipelineObserver,
	attempts []domain.GenerationAttempt,
	retryEnabled bool,
) *SafetyRetryController {
	if observer == nil {
		observer = nopObserver{}
	}
	return &SafetyRetryController{
		generator:    generator,
		observer:     observer,
		attempts:     attempts,
		retryEnabled: retryEnabled,
	}
}

// Run executes attempts in order. Model and Safety of base are replaced per
// attempt. Exhausting all attempts yields SafetyFallbackMessage and
// Grounded=false; no error is returned.
func (c *SafetyRetryController) Run(ctx context.Context, base domain.GenerationRequest) GenerationOutcome {
	outcome := GenerationOutcome{Text: SafetyFallbackMessage}
	limit := len(c.attempts)
	if !c.retryEnabled && limit > 1 {
		limit = 1
	}

	for i := 0; i < limit; i++ {
		attempt := c.attempts[i]
		number := i + 1

		req := base
		req.Model = attempt.Model
		req.Safety = attempt.Safety

		state := domain.AttemptPending
		reason := ""
		text := ""
		if err := ctx.Err(); err != nil {
			state, reason = domain.AttemptError, err.Error()
		} else {
			resp, err := c.generator.Generate(ctx, req)
			state, reason = classifyGeneration(resp, err)
			text = resp.Text
		}

		outcome.Attempts = append(outcome.Attempts, AttemptRecord{Attempt: attempt, State: state, Reason: reason})
		c.observer.ObserveGenerationAttempt(attempt, state)

		switch state {
		case domain.AttemptSuccess:
			outcome.Text = strings.TrimSpace(text)
			outcome.Grounded = true
			outcome.SafetyFallback = number > 1
			slog.Info("generation_success",
				"attempt", number,
				"model", attempt.Model,
				"safety", string(attempt.Safety),
				"answer_len", len(outcome.Text),
			)
			if outcome.SafetyFallback {
				slog.Info("safety_retry_succeeded", "attempt", number, "model", attempt.Model)
			}
			return outcome
		case domain.AttemptBlocked, domain.AttemptTruncated:
			slog.Warn("safety_block_detected",
				"attempt", number,
				"model", attempt.Model,
				"state", state.String(),
				"reason", reason,
			)
		case domain.AttemptError:
			slog.Warn("safety_attempt_exception",
				"attempt", number,
				"model", attempt.Model,
				"error", reason,
			)
		case domain.AttemptPending:
		}
	}

	slog.Error("all_safety_attempts_failed", "attempts", len(outcome.Attempts))
	return outcome
}

// classifyGeneration maps a backend response to an attempt state.
func classifyGeneration(resp domain.GenerationResponse, err error) (domain.AttemptState, string) {
	if err != nil {
		return domain.AttemptError, err.Error()
	}
	switch resp.FinishReason {
	case domain.FinishSafety, domain.FinishBlocked, domain.FinishNoCandidate, domain.FinishOther:
		return domain.AttemptBlocked, string(resp.FinishReason)
	case domain.FinishMaxTokens:
		return domain.AttemptTruncated, string(resp.FinishReason)
	case domain.FinishStop, domain.FinishUnspecified:
		if strings.TrimSpace(resp.Text) == "" {
			return domain.AttemptBlocked, string(domain.FinishNoCandidate)
		}
		return domain.AttemptSuccess, string(resp.FinishReason)
	default:
		return domain.AttemptBlocked, string(resp.FinishReason)
	}
}
