package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// BackoffPolicy returns the delay to sleep before retry number retry
// (1 = the delay preceding the second attempt).
type BackoffPolicy func(retry int) time.Duration

// FixedBackoff is the production policy: 500ms before the second attempt,
// 1500ms before every later one. Static delays are acceptable here because
// call volume is low and there is no fleet-wide coordination concern.
func FixedBackoff(retry int) time.Duration {
	if retry <= 1 {
		return 500 * time.Millisecond
	}
	return 1500 * time.Millisecond
}

// generativeModel is the slice of *genai.GenerativeModel the client needs.
type generativeModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// ModelClient calls the extraction model with bounded retries.
type ModelClient struct {
	model       generativeModel
	maxAttempts int
	backoff     BackoffPolicy
	sleep       func(time.Duration)
}

// NewModelClient wraps a pre-configured generative model with the default
// retry policy: three total attempts on the fixed backoff schedule.
func NewModelClient(model *genai.GenerativeModel) *ModelClient {
	return &ModelClient{
		model:       model,
		maxAttempts: 3,
		backoff:     FixedBackoff,
		sleep:       time.Sleep,
	}
}

// Generate calls the model and returns the concatenated text of the first
// candidate. After exhausting all attempts it fails with a ModelCallError
// wrapping the last error.
func (c *ModelClient) Generate(ctx context.Context, parts ...genai.Part) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(c.backoff(attempt - 1))
		}

		resp, err := c.model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			slog.Warn("Model call failed.", "attempt", attempt, "maxAttempts", c.maxAttempts, "error", err)
			continue
		}
		return responseText(resp), nil
	}
	return "", &ModelCallError{Attempts: c.maxAttempts, Err: lastErr}
}

// responseText robustly extracts the text content from a model response.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			builder.WriteString(string(txt))
		}
	}
	return builder.String()
}

// CleanJSONResponse strips a fenced-code-block wrapper (with or without a
// language tag) from the model's raw output. Purely textual; it never
// attempts JSON repair.
func CleanJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
