package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

// postJSON sends one request through the executor. A non-empty scope gives
// the call its own breaker, so one failing model does not trip another.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation, scope string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-goog-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("gemini %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("gemini", operation, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, breakerName(c.opPrefix, operation, scope), call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("gemini "+operation, err, resilience.ClassifyHTTPError)
}

func breakerName(prefix, operation, scope string) string {
	name := prefix + "." + operation
	if scope = strings.TrimSpace(scope); scope != "" {
		name += "." + strings.TrimPrefix(scope, "models/")
	}
	return name
}
