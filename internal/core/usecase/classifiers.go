package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

const (
	DisclaimerCalculation = "⚠️ კონკრეტული თანხების გამოსათვლელად მიმართეთ საგადასახადო კონსულტანტს."
	disclaimerTemporalFmt = "⚠️ თქვენ %d წლის შესახებ გკითხავთ, გთხოვთ გაითვალისწინოთ, რომ საგადასახადო კანონმდებლობა შეიძლება შეცვლილი იყოს."
)

var redZonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)რამდენი`),
	regexp.MustCompile(`(?i)გამოთვალე`),
	regexp.MustCompile(`(?i)რა გადასახადი`),
	regexp.MustCompile(`(?i)რამდენია`),
}

var pastDatePattern = regexp.MustCompile(`(20\d{2})\s*წელ`)

// isRedZone reports whether the query asks for a concrete calculation.
func isRedZone(query string) bool {
	for _, pattern := range redZonePatterns {
		if pattern.MatchString(query) {
			return true
		}
	}
	return false
}

// detectPastYear returns the first year reference such as "2022 წელს".
func detectPastYear(query string) (int, bool) {
	match := pastDatePattern.FindStringSubmatch(query)
	if match == nil {
		return 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

func temporalWarning(year int) string {
	return fmt.Sprintf(disclaimerTemporalFmt, year)
}

// resolveTerms returns the definitions whose Georgian term occurs in query.
// Store failures yield no definitions.
func resolveTerms(ctx context.Context, store ports.DefinitionStore, query string) []domain.Definition {
	if store == nil {
		return nil
	}
	all, err := store.ListDefinitions(ctx)
	if err != nil {
		slog.Warn("term_resolution_failed", "error", err)
		return nil
	}
	matched := make([]domain.Definition, 0)
	for _, def := range all {
		if def.TermKA != "" && strings.Contains(query, def.TermKA) {
			matched = append(matched, def)
		}
	}
	slog.Info("terms_resolved", "matched_count", len(matched))
	return matched
}

var piiDigits = regexp.MustCompile(`\d{5,}`)

// sanitizeForLog redacts long digit runs and caps the preview length.
func sanitizeForLog(text string) string {
	return truncateRunes(piiDigits.ReplaceAllString(text, "[REDACTED]"), 50)
}
