package qdrant

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

// classifyQdrantError treats 409 on collection creation as a non-failure for
// the breaker; everything else follows the HTTP defaults.
func classifyQdrantError(err error) resilience.ErrorClassification {
	var statusErr *resilience.HTTPStatusError
	if asStatus(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTPError(err)
}

func asStatus(err error, target **resilience.HTTPStatusError) bool {
	return errors.As(err, target)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// JSON numbers decode as float64.
func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func getBoolPayload(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func getIntsPayload(payload map[string]any, key string) []int {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		if n, ok := item.(float64); ok {
			out = append(out, int(n))
		}
	}
	return out
}
