package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contentpulse/backend/internal/domain"
)

type MediumClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// MediumClient queries the publication-tag provider.
type MediumClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewMediumClient(config MediumClientConfig) *MediumClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://medium2.p.rapidapi.com"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &MediumClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    defaultTimeout(config.Timeout),
		httpClient: config.HTTPClient,
	}
}

func (c *MediumClient) Available() bool {
	return c.apiKey != ""
}

// ListTags returns popular publication tags.
func (c *MediumClient) ListTags(ctx context.Context, limit int) ([]string, error) {
	if !c.Available() {
		return nil, ErrProviderUnavailable
	}
	if limit <= 0 {
		limit = 25
	}

	body, err := c.get(ctx, "/root_tags", url.Values{})
	if err != nil {
		return nil, err
	}

	var raw struct {
		RootTags []string `json:"root_tags"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	tags := dedupePreserveOrder(raw.RootTags)
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

// TrendingForTag returns the currently trending articles under one tag.
func (c *MediumClient) TrendingForTag(ctx context.Context, tag string, limit int) ([]domain.ArticleSummary, error) {
	if !c.Available() {
		return nil, ErrProviderUnavailable
	}
	if limit <= 0 {
		limit = 5
	}

	values := url.Values{}
	values.Set("mode", "hot")
	values.Set("count", strconv.Itoa(limit))

	body, err := c.get(ctx, "/topfeeds/"+url.PathEscape(tag)+"/hot", values)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Articles []struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Subtitle    string `json:"subtitle"`
			Author      string `json:"author"`
			PublishedAt string `json:"published_at"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode topfeeds response: %w", err)
	}

	articles := make([]domain.ArticleSummary, 0, len(raw.Articles))
	for _, item := range raw.Articles {
		articles = append(articles, domain.ArticleSummary{
			ID:          item.ID,
			Title:       item.Title,
			Subtitle:    item.Subtitle,
			Author:      item.Author,
			PublishedAt: item.PublishedAt,
		})
		if len(articles) >= limit {
			break
		}
	}
	return articles, nil
}

func (c *MediumClient) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create publication request: %w", err)
	}
	request.Header.Set("X-RapidAPI-Key", c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("publication transport error: %w", err)
	}
	return readBody(response)
}
