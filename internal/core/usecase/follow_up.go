package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

const followUpPromptTemplate = `მომხმარებელმა დასვა საგადასახადო კითხვა და მიიღო პასუხი.
შექმენი %d სავარაუდო შემდეგი კითხვა, რომელიც მომხმარებელს შეიძლება დაეხმაროს თემის გაღრმავებაში.

წესები:
- მხოლოდ ქართულად
- ყოველი კითხვა უნდა იყოს მოკლე (15 სიტყვამდე)
- კითხვები უნდა იყოს კონკრეტული და საგადასახადო თემაზე
- არ გაიმეორო ორიგინალი კითხვა
- დააბრუნე მხოლოდ JSON მასივი, სხვა არაფერი

ფორმატი:
[{"title": "კითხვის მოკლე ტექსტი", "payload": "კითხვის სრული ტექსტი"}]

ორიგინალი კითხვა: %s

პასუხი: %s

JSON მასივი:`

const (
	minFollowUpAnswerLen = 50
	followUpPreviewLen   = 500
	maxFollowUps         = 5
)

// FollowUpGenerator suggests next questions. It never fails: errors and
// timeouts produce an empty list.
type FollowUpGenerator struct {
	generator      ports.TextGenerator
	model          string
	maxSuggestions int
	timeout        time.Duration
}

func NewFollowUpGenerator(generator ports.TextGenerator, model string, maxSuggestions int, timeout time.Duration) *FollowUpGenerator {
	if maxSuggestions <= 0 || maxSuggestions > maxFollowUps {
		maxSuggestions = 4
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FollowUpGenerator{generator: generator, model: model, maxSuggestions: maxSuggestions, timeout: timeout}
}

func (f *FollowUpGenerator) Generate(ctx context.Context, query, answer string) []domain.FollowUp {
	if len([]rune(answer)) < minFollowUpAnswerLen {
		return []domain.FollowUp{}
	}

	preview := answer
	if len([]rune(preview)) > followUpPreviewLen {
		preview = truncateRunes(preview, followUpPreviewLen) + "..."
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.generator.Generate(callCtx, domain.GenerationRequest{
		Model:           f.model,
		Messages:        []domain.Message{{Role: domain.RoleUser, Text: fmt.Sprintf(followUpPromptTemplate, f.maxSuggestions, query, preview)}},
		Temperature:     0.7,
		MaxOutputTokens: 512,
		Safety:          domain.SafetyStrict,
		JSON:            true,
	})
	if err != nil {
		if callCtx.Err() != nil {
			slog.Warn("follow_up_timeout", "query", sanitizeForLog(query))
		} else {
			slog.Error("follow_up_failed", "error", err, "query", sanitizeForLog(query))
		}
		return []domain.FollowUp{}
	}

	suggestions := parseFollowUps(resp.Text, f.maxSuggestions)
	slog.Info("follow_ups_generated", "count", len(suggestions))
	return suggestions
}

func parseFollowUps(raw string, limit int) []domain.FollowUp {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = ""
		}
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cleaned), "```"))

	var items []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		slog.Warn("follow_up_json_parse_error", "raw_preview", truncateRunes(raw, 100))
		return []domain.FollowUp{}
	}

	out := make([]domain.FollowUp, 0, limit)
	for _, item := range items {
		if len(out) == limit {
			break
		}
		title, _ := item["title"].(string)
		payload, _ := item["payload"].(string)
		if strings.TrimSpace(title) == "" || strings.TrimSpace(payload) == "" {
			continue
		}
		out = append(out, domain.FollowUp{Title: title, Payload: payload})
	}
	return out
}
