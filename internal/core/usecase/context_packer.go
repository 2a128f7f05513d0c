package usecase

import (
	"log/slog"
	"unicode/utf8"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

const (
	DefaultMaxContextChars = 20000

	truncationMarker    = "\n[...]"
	minPartialRemaining = 200
)

// packContext keeps results in order while their bodies fit the character
// budget. The first body that does not fit is truncated with a marker when
// more than minPartialRemaining characters are left; packing stops there.
// Lengths are counted in runes.
func packContext(results []domain.SearchResult, budget int) []domain.SearchResult {
	if len(results) == 0 || budget <= 0 {
		if len(results) > 0 {
			slog.Info("context_packed", "kept", 0, "dropped", len(results), "budget", budget)
		}
		return []domain.SearchResult{}
	}

	packed := make([]domain.SearchResult, 0, len(results))
	remaining := budget
	for _, result := range results {
		bodyLen := utf8.RuneCountInString(result.Body)
		if bodyLen <= remaining {
			packed = append(packed, result)
			remaining -= bodyLen
			continue
		}
		if remaining > minPartialRemaining {
			result.Body = truncateRunes(result.Body, remaining-utf8.RuneCountInString(truncationMarker)) + truncationMarker
			packed = append(packed, result)
		}
		break
	}

	slog.Info("context_packed",
		"kept", len(packed),
		"dropped", len(results)-len(packed),
		"budget", budget,
		"remaining", remaining,
	)
	return packed
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func packedLength(results []domain.SearchResult) int {
	total := 0
	for _, result := range results {
		total += utf8.RuneCountInString(result.Body)
	}
	return total
}
