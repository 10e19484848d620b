package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrOpenAIUnavailable is returned when no API key is configured for the
// provider a call was routed to.
var ErrOpenAIUnavailable = errors.New("openai client unavailable")

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateRequest struct {
	Model           string
	Instructions    string
	Input           string
	Temperature     float64
	MaxOutputTokens int
}

type GenerateResult struct {
	Text    string
	ModelID string
	Usage   TokenUsage
}

// TextGenerator is the surface the generation service depends on. Both the
// OpenAI and the OpenRouter clients implement it.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error)
	Available() bool
}

// statusError carries a non-2xx provider response so retry logic can inspect
// the status code.
type statusError struct {
	provider string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.provider, e.code, e.body)
}

func newStatusError(provider string, code int, body []byte) *statusError {
	message := strings.TrimSpace(string(body))
	if len(message) > 700 {
		message = message[:700]
	}
	return &statusError{provider: provider, code: code, body: message}
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}

// withRetries runs call until it succeeds, the error is not retryable, or the
// attempt budget is spent. Backoff grows linearly per attempt.
func withRetries(ctx context.Context, maxRetries int, call func() (GenerateResult, error)) (GenerateResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) || attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return GenerateResult{}, ctx.Err()
		case <-time.After(time.Duration(350*(attempt+1)) * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("provider call failed without error detail")
	}
	return GenerateResult{}, lastErr
}

func validateGenerateRequest(request GenerateRequest) error {
	if strings.TrimSpace(request.Model) == "" {
		return errors.New("model is required")
	}
	if strings.TrimSpace(request.Input) == "" {
		return errors.New("input is required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
