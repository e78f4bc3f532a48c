package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// llmMaxRetries bounds LLM retry attempts across planner, reflection and
// synthesis. Var so tests can tighten it.
var llmMaxRetries = 3

// llmBackoff returns how long to wait before retry attempt i. Var so tests
// can avoid real sleeps.
var llmBackoff = func(attempt int) time.Duration {
	return time.Second * time.Duration(attempt) // Linear backoff
}

// generateWithRetry attempts to generate content and validates it using the provided function.
// It retries with bounded backoff if the LLM fails or the validator returns an error.
func generateWithRetry(ctx context.Context, model llms.Model, logger *slog.Logger, prompts []llms.MessageContent, opts []llms.CallOption, validator func(string) error) (string, error) {
	var lastErr error

	for i := 0; i < llmMaxRetries; i++ {
		if i > 0 {
			logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(llmBackoff(i)):
			}
		}

		resp, err := model.GenerateContent(ctx, prompts, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if validator != nil {
			if err := validator(content); err != nil {
				lastErr = fmt.Errorf("validation failed: %w", err)
				continue
			}
		}

		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", llmMaxRetries, lastErr)
}
