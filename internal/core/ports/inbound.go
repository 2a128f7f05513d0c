package ports

import (
	"context"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// TaxQuestionAnswerer is the inbound contract for answering a tax question.
type TaxQuestionAnswerer interface {
	Answer(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}

// AnswerRecorder is the inbound contract of the persistence worker.
type AnswerRecorder interface {
	Record(ctx context.Context, record domain.AnswerRecord) error
}
