package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SerpClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SerpClient queries the keyword-autocomplete provider.
type SerpClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewSerpClient(config SerpClientConfig) *SerpClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://serpapi.com"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &SerpClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    defaultTimeout(config.Timeout),
		httpClient: config.HTTPClient,
	}
}

func (c *SerpClient) Available() bool {
	return c.apiKey != ""
}

// Autocomplete returns search completions for one query.
func (c *SerpClient) Autocomplete(ctx context.Context, query string) ([]string, error) {
	if !c.Available() {
		return nil, ErrProviderUnavailable
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	values := url.Values{}
	values.Set("engine", "google_autocomplete")
	values.Set("q", query)
	values.Set("api_key", c.apiKey)

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodGet,
		c.baseURL+"/search.json?"+values.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create autocomplete request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("autocomplete transport error: %w", err)
	}
	body, err := readBody(response)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Suggestions []struct {
			Value string `json:"value"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode autocomplete response: %w", err)
	}

	completions := make([]string, 0, len(raw.Suggestions))
	for _, suggestion := range raw.Suggestions {
		completions = append(completions, suggestion.Value)
	}
	return dedupePreserveOrder(completions), nil
}

// ExpandKeywords expands each seed via autocomplete, deduplicating while
// preserving first-occurrence order, capped at limit.
func (c *SerpClient) ExpandKeywords(ctx context.Context, seeds []string, limit, perSeedLimit int) ([]string, error) {
	if !c.Available() {
		return nil, ErrProviderUnavailable
	}
	if limit <= 0 {
		limit = 20
	}
	if perSeedLimit <= 0 {
		perSeedLimit = 5
	}

	expanded := make([]string, 0, limit)
	for _, seed := range seeds {
		completions, err := c.Autocomplete(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", seed, err)
		}
		if len(completions) > perSeedLimit {
			completions = completions[:perSeedLimit]
		}
		expanded = append(expanded, completions...)
	}

	expanded = dedupePreserveOrder(expanded)
	if len(expanded) > limit {
		expanded = expanded[:limit]
	}
	return expanded, nil
}
