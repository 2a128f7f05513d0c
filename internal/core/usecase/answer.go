package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

const (
	maxSourceTextLen = 2000
	publishTimeout   = 5 * time.Second
)

// RetrievalErrorMessage is reported in Answer.Error when retrieval failed.
// Backend error text stays in the log.
const RetrievalErrorMessage = "retrieval unavailable"


// AnswerConfig carries the feature gates and generation parameters of the
// question-answering pipeline.
type AnswerConfig struct {
	PrimaryModel              string
	BackupModel               string
	Temperature               float64
	MaxOutputTokens           int
	MaxHistoryTurns           int
	MaxContextChars           int
	RouterEnabled             bool
	GraphExpansionEnabled     bool
	CitationEnabled           bool
	SafetyRetryEnabled        bool
	CriticEnabled             bool
	CriticRegenerationEnabled bool
	CriticConfidenceThreshold float64
	FollowUpEnabled           bool
	SourceBaseURL             string
}

// AnswerUseCase answers tax questions: classify, retrieve, pack, generate
// under the safety retry matrix, optionally critique and regenerate once.
type AnswerUseCase struct {
	searcher      *HybridSearcher
	expander      *GraphExpander
	generator     ports.TextGenerator
	retry         *SafetyRetryController
	critic        *Critic
	rewriter      *QueryRewriter
	followUps     *FollowUpGenerator
	router        *DomainRouter
	definitions   ports.DefinitionStore
	rules         ports.LogicRules
	conversations ports.ConversationStore
	publisher     ports.AnswerPublisher
	observer      ports.PipelineObserver
	cfg           AnswerConfig
}

func NewAnswerUseCase(
	searcher *HybridSearcher,
	expander *GraphExpander,
	generator ports.TextGenerator,
	critic *Critic,
	rewriter *QueryRewriter,
	followUps *FollowUpGenerator,
	router *DomainRouter,
	definitions ports.DefinitionStore,
	rules ports.LogicRules,
	conversations ports.ConversationStore,
	publisher ports.AnswerPublisher,
	observer ports.PipelineObserver,
	cfg AnswerConfig,
) *AnswerUseCase {
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 5
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	if cfg.CriticConfidenceThreshold <= 0 {
		cfg.CriticConfidenceThreshold = 0.7
	}
	if cfg.BackupModel == "" {
		cfg.BackupModel = cfg.PrimaryModel
	}

	return &AnswerUseCase{
		searcher:      searcher,
		expander:      expander,
		generator:     generator,
		retry:         NewSafetyRetryController(generator, observer, SafetyAttempts(cfg.PrimaryModel, cfg.BackupModel), cfg.SafetyRetryEnabled),
		critic:        critic,
		rewriter:      rewriter,
		followUps:     followUps,
		router:        router,
		definitions:   definitions,
		rules:         rules,
		conversations: conversations,
		publisher:     publisher,
		observer:      observer,
		cfg:           cfg,
	}
}

// Answer returns an error only for invalid input. Retrieval and generation
// failures are reported through Answer.Error and the fallback text.
func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	query := strings.TrimSpace(req.Question)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("question is required"))
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	history := req.History
	if conversationID == "" {
		conversationID = uuid.NewString()
	} else if len(history) == 0 {
		history = uc.loadHistory(ctx, conversationID)
	}

	redZone := isRedZone(query)
	definitions := resolveTerms(ctx, uc.definitions, query)
	year, hasYear := detectPastYear(query)

	route := domain.DefaultRoute()
	if uc.cfg.RouterEnabled && uc.router != nil {
		route = uc.router.Route(ctx, query)
		slog.Info("router_result",
			"domain", string(route.Domain),
			"confidence", route.Confidence,
			"method", string(route.Method),
		)
	}

	logicRules := ""
	if uc.rules != nil {
		if rules, ok := uc.rules.RulesFor(route.Domain); ok {
			logicRules = rules
		}
	}

	searchQuery := query
	if uc.rewriter != nil {
		searchQuery = uc.rewriter.Rewrite(ctx, query, history)
	}

	answer := &domain.Answer{
		ConversationID: conversationID,
		Route:          route,
		Sources:        []int{},
		SourceMetadata: []domain.SourceMetadata{},
		FollowUps:      []domain.FollowUp{},
	}
	if redZone {
		answer.Disclaimer = DisclaimerCalculation
	}
	if hasYear {
		answer.TemporalWarning = temporalWarning(year)
	}

	results, err := uc.searcher.Search(ctx, searchQuery, route)
	if err != nil {
		slog.Error("rag_pipeline_failed", "error", err, "query", sanitizeForLog(query))
		answer.Text = SafetyFallbackMessage
		answer.Error = RetrievalErrorMessage
		uc.observer.ObserveAnswer(false, false)
		return answer, nil
	}

	if uc.cfg.GraphExpansionEnabled && uc.expander != nil {
		results = uc.expander.Expand(ctx, results)
		results = applyPrecedence(results)
	}

	packed := packContext(results, uc.cfg.MaxContextChars)
	uc.observer.ObserveContextPacked(len(packed), len(results)-len(packed))

	// An exception attached to several general rules appears once per rule in
	// the context but is cited once.
	primary, _ := splitCrossRefs(packed)
	primary = uniqueArticles(primary)
	answer.SourceMetadata = uc.sourceMetadata(primary)
	answer.Confidence = confidenceScore(primary)
	for _, result := range primary {
		answer.Sources = append(answer.Sources, result.ArticleNumber)
	}

	var citations []domain.Citation
	if uc.cfg.CitationEnabled {
		citations = citationsFor(primary)
		answer.Citations = citations
	}

	systemPrompt := buildSystemPrompt(promptInput{
		Context:      packed,
		Definitions:  definitions,
		Citations:    citations,
		RedZone:      redZone,
		TemporalYear: year,
		Domain:       route.Domain,
		LogicRules:   logicRules,
	})
	slog.Info("system_prompt_built",
		"prompt_len", len(systemPrompt),
		"has_citations", len(citations) > 0,
		"has_logic_rules", logicRules != "",
	)

	base := domain.GenerationRequest{
		SystemPrompt:    systemPrompt,
		Messages:        buildMessages(query, history, uc.cfg.MaxHistoryTurns),
		Temperature:     uc.cfg.Temperature,
		MaxOutputTokens: uc.cfg.MaxOutputTokens,
	}
	outcome := uc.retry.Run(ctx, base)
	answer.Text = outcome.Text
	answer.Grounded = outcome.Grounded
	answer.SafetyFallback = outcome.SafetyFallback

	if outcome.Grounded {
		answer.Text = uc.reviewAnswer(ctx, base, answer.Text, answer.Confidence, citations)
	}

	if uc.cfg.FollowUpEnabled && uc.followUps != nil && !redZone && outcome.Grounded {
		answer.FollowUps = uc.followUps.Generate(ctx, query, answer.Text)
	}

	uc.observer.ObserveAnswer(answer.Grounded, answer.SafetyFallback)
	uc.publish(ctx, domain.AnswerRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Question:       query,
		Answer:         answer.Text,
		Citations:      citations,
		Grounded:       answer.Grounded,
		SafetyFallback: answer.SafetyFallback,
		CreatedAt:      time.Now().UTC(),
	})
	return answer, nil
}

// reviewAnswer applies the critic gate. At most one regeneration is issued;
// a rejected or failed regeneration keeps the first text with the critic
// disclaimer appended.
func (uc *AnswerUseCase) reviewAnswer(
	ctx context.Context,
	base domain.GenerationRequest,
	text string,
	confidence float64,
	citations []domain.Citation,
) string {
	if !uc.cfg.CriticEnabled || uc.critic == nil {
		return text
	}
	if len(citations) == 0 {
		slog.Debug("critic_skipped_no_sources")
		return text
	}
	if confidence >= uc.cfg.CriticConfidenceThreshold {
		slog.Debug("critic_skipped_high_confidence", "confidence", confidence)
		return text
	}

	verdict := uc.critic.Review(ctx, text, citations)
	if verdict.Approved || strings.TrimSpace(verdict.Feedback) == "" {
		uc.observer.ObserveCriticVerdict(true, false)
		return text
	}

	if !uc.cfg.CriticRegenerationEnabled {
		slog.Warn("critic_rejected_no_regen", "feedback", verdict.Feedback)
		uc.observer.ObserveCriticVerdict(false, false)
		return withCriticDisclaimer(text)
	}

	req := base
	req.Model = uc.cfg.PrimaryModel
	req.Safety = domain.SafetyStrict
	req.SystemPrompt = base.SystemPrompt + fmt.Sprintf(regenerationInstructionFmt, verdict.Feedback)

	resp, err := uc.generator.Generate(ctx, req)
	if state, reason := classifyGeneration(resp, err); state != domain.AttemptSuccess {
		slog.Warn("critic_regen_failed", "state", state.String(), "reason", reason)
		uc.observer.ObserveCriticVerdict(false, true)
		return withCriticDisclaimer(text)
	}

	regenerated := strings.TrimSpace(resp.Text)
	second := uc.critic.Review(ctx, regenerated, citations)
	uc.observer.ObserveCriticVerdict(second.Approved, true)
	if second.Approved {
		slog.Info("critic_regen_accepted")
		return regenerated
	}
	slog.Warn("critic_regen_also_rejected", "feedback", second.Feedback)
	return withCriticDisclaimer(text)
}

func withCriticDisclaimer(text string) string {
	return text + "\n\n" + CriticDisclaimer
}

func (uc *AnswerUseCase) loadHistory(ctx context.Context, conversationID string) []domain.Message {
	if uc.conversations == nil {
		return nil
	}
	turns, err := uc.conversations.ListRecentTurns(ctx, conversationID, uc.cfg.MaxHistoryTurns)
	if err != nil {
		slog.Warn("history_load_failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	history := make([]domain.Message, 0, len(turns))
	for _, turn := range turns {
		history = append(history, domain.Message{Role: turn.Role, Text: turn.Content})
	}
	return history
}

// publish hands the record to the persistence worker without blocking the
// response. Failures are logged only.
func (uc *AnswerUseCase) publish(ctx context.Context, record domain.AnswerRecord) {
	if uc.publisher == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	go func() {
		defer cancel()
		if err := uc.publisher.PublishAnswerRecorded(publishCtx, record); err != nil {
			slog.Warn("answer_publish_failed", "conversation_id", record.ConversationID, "error", err)
		}
	}()
}

func (uc *AnswerUseCase) sourceMetadata(results []domain.SearchResult) []domain.SourceMetadata {
	out := make([]domain.SourceMetadata, 0, len(results))
	for _, result := range results {
		meta := domain.SourceMetadata{
			ArticleNumber: result.ArticleNumber,
			Chapter:       result.Kari,
			Title:         result.Title,
			Score:         result.Score,
			Text:          result.Body,
		}
		if uc.cfg.SourceBaseURL != "" && result.ArticleNumber > 0 {
			meta.URL = fmt.Sprintf("%s#Article_%d", uc.cfg.SourceBaseURL, result.ArticleNumber)
		}
		if len([]rune(meta.Text)) > maxSourceTextLen {
			meta.Text = truncateRunes(meta.Text, maxSourceTextLen) + "…"
		}
		out = append(out, meta)
	}
	return out
}

// citationsFor numbers primary results from 1 in ranking order.
func citationsFor(results []domain.SearchResult) []domain.Citation {
	citations := make([]domain.Citation, 0, len(results))
	for i, result := range results {
		citations = append(citations, domain.Citation{
			ID:            i + 1,
			ArticleNumber: result.ArticleNumber,
			Title:         result.Title,
		})
	}
	return citations
}

// confidenceScore is the mean native score of non-cross-ref results,
// clamped to [0, 1].
func confidenceScore(results []domain.SearchResult) float64 {
	total := 0.0
	count := 0
	for _, result := range results {
		if result.IsCrossRef {
			continue
		}
		total += result.Score
		count++
	}
	if count == 0 {
		return 0
	}
	mean := total / float64(count)
	switch {
	case mean < 0:
		return 0
	case mean > 1:
		return 1
	default:
		return mean
	}
}
