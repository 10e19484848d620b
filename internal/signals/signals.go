// Package signals holds thin read-only clients for the external signal
// providers: keyword autocomplete, social search/trends and publication tags.
// Every client reports Available(); a missing API key disables the client and
// the pipeline degrades instead of failing.
package signals

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrProviderUnavailable = errors.New("signal provider unavailable")

type httpError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func readBody(response *http.Response) ([]byte, error) {
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 500 {
			message = message[:500]
		}
		return nil, &httpError{Provider: response.Request.URL.Host, StatusCode: response.StatusCode, Message: message}
	}
	return body, nil
}

func defaultTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 12 * time.Second
	}
	return timeout
}

// dedupePreserveOrder keeps the first occurrence of each value.
func dedupePreserveOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, strings.TrimSpace(value))
	}
	return result
}
