package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

type DefinitionRepository struct {
	db *sql.DB
}

func NewDefinitionRepository(db *sql.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) ListDefinitions(ctx context.Context) ([]domain.Definition, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT term_ka, term_en, definition
FROM definitions
ORDER BY term_ka
`)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Definition, 0)
	for rows.Next() {
		var def domain.Definition
		if err := rows.Scan(&def.TermKA, &def.TermEN, &def.Definition); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return out, nil
}

func (r *DefinitionRepository) UpsertDefinitions(ctx context.Context, defs []domain.Definition) error {
	for _, def := range defs {
		if def.TermKA == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, `
INSERT INTO definitions (term_ka, term_en, definition)
VALUES ($1,$2,$3)
ON CONFLICT (term_ka) DO UPDATE SET term_en = EXCLUDED.term_en, definition = EXCLUDED.definition
`, def.TermKA, def.TermEN, def.Definition); err != nil {
			return fmt.Errorf("upsert definition %q: %w", def.TermKA, err)
		}
	}
	return nil
}
