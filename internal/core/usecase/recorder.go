package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

// RecordAnswerUseCase stores answered questions as conversation turns.
type RecordAnswerUseCase struct {
	conversations ports.ConversationStore
}

func NewRecordAnswerUseCase(conversations ports.ConversationStore) *RecordAnswerUseCase {
	return &RecordAnswerUseCase{conversations: conversations}
}

func (uc *RecordAnswerUseCase) Record(ctx context.Context, record domain.AnswerRecord) error {
	conversationID := strings.TrimSpace(record.ConversationID)
	if conversationID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record answer", fmt.Errorf("conversation_id is required"))
	}
	if strings.TrimSpace(record.Question) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record answer", fmt.Errorf("question is required"))
	}

	turns := []domain.ConversationTurn{
		{ConversationID: conversationID, Role: domain.RoleUser, Content: record.Question, CreatedAt: record.CreatedAt},
		{ConversationID: conversationID, Role: domain.RoleModel, Content: record.Answer, CreatedAt: record.CreatedAt},
	}
	if err := uc.conversations.AppendTurns(ctx, conversationID, turns); err != nil {
		return domain.WrapError(domain.ErrTemporary, "append conversation turns", err)
	}
	slog.Info("answer_recorded",
		"conversation_id", conversationID,
		"grounded", record.Grounded,
		"safety_fallback", record.SafetyFallback,
		"citations", len(record.Citations),
	)
	return nil
}
