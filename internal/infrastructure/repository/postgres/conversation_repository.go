package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// AppendTurns stores turns after the conversation's last turn number. Turn
// numbering is serialized per conversation with a transaction-scoped lock.
func (r *ConversationRepository) AppendTurns(ctx context.Context, conversationID string, turns []domain.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, conversationID); err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}

	var lastTurn int
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(turn), 0)
FROM conversation_turns
WHERE conversation_id = $1
`, conversationID).Scan(&lastTurn); err != nil {
		return fmt.Errorf("select last turn: %w", err)
	}

	now := time.Now().UTC()
	for i, turn := range turns {
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_turns (id, conversation_id, role, content, turn, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, turn.ID, conversationID, turn.Role, turn.Content, lastTurn+i+1, turn.CreatedAt); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, turn, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY turn DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Role,
			&turn.Content,
			&turn.Turn,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
