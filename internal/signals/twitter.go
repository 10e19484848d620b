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

type TwitterClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// TwitterClient queries the social-search provider for trends and posts.
type TwitterClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewTwitterClient(config TwitterClientConfig) *TwitterClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://twitter154.p.rapidapi.com"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &TwitterClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    defaultTimeout(config.Timeout),
		httpClient: config.HTTPClient,
	}
}

func (c *TwitterClient) Available() bool {
	return c.apiKey != ""
}

// SearchResults groups the two ranking modes the provider exposes.
type SearchResults struct {
	Top    []domain.PostSummary
	Latest []domain.PostSummary
}

// TrendingTopics returns globally trending topic names.
func (c *TwitterClient) TrendingTopics(ctx context.Context, limit int) ([]string, error) {
	if !c.Available() {
		return nil, ErrProviderUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	body, err := c.get(ctx, "/trends/", url.Values{"woeid": {"1"}})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Trends []struct {
			Name string `json:"name"`
		} `json:"trends"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode trends response: %w", err)
	}

	topics := make([]string, 0, limit)
	for _, group := range raw {
		for _, trend := range group.Trends {
			topics = append(topics, trend.Name)
		}
	}
	topics = dedupePreserveOrder(topics)
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// SearchPosts returns top and latest posts for one query.
func (c *TwitterClient) SearchPosts(ctx context.Context, query string, count int) (SearchResults, error) {
	if !c.Available() {
		return SearchResults{}, ErrProviderUnavailable
	}
	if count <= 0 {
		count = 10
	}

	results := SearchResults{}
	for _, section := range []string{"top", "latest"} {
		values := url.Values{}
		values.Set("query", query)
		values.Set("section", section)
		values.Set("limit", strconv.Itoa(count))

		body, err := c.get(ctx, "/search/search", values)
		if err != nil {
			return SearchResults{}, err
		}

		var raw struct {
			Results []struct {
				TweetID      string `json:"tweet_id"`
				Text         string `json:"text"`
				User         struct {
					Name     string `json:"name"`
					Username string `json:"username"`
				} `json:"user"`
				FavoriteCount int `json:"favorite_count"`
				RetweetCount  int `json:"retweet_count"`
				ReplyCount    int `json:"reply_count"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return SearchResults{}, fmt.Errorf("decode search response: %w", err)
		}

		posts := make([]domain.PostSummary, 0, len(raw.Results))
		for _, item := range raw.Results {
			posts = append(posts, domain.PostSummary{
				ID:           item.TweetID,
				Text:         item.Text,
				AuthorName:   item.User.Name,
				AuthorHandle: item.User.Username,
				LikeCount:    item.FavoriteCount,
				RetweetCount: item.RetweetCount,
				ReplyCount:   item.ReplyCount,
			})
		}

		if section == "top" {
			results.Top = posts
		} else {
			results.Latest = posts
		}
	}
	return results, nil
}

func (c *TwitterClient) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodGet,
		c.baseURL+path+"?"+values.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create social request: %w", err)
	}
	request.Header.Set("X-RapidAPI-Key", c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("social transport error: %w", err)
	}
	return readBody(response)
}
