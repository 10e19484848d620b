package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrOpenRouterUnavailable = ErrOpenAIUnavailable

type OpenRouterClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	SiteURL    string
	AppName    string
}

// OpenRouterClient is the secondary text provider. It speaks the
// chat-completions dialect, so requests are rewritten into a system plus a
// user message.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	siteURL    string
	appName    string
}

func NewOpenRouterClient(config OpenRouterClientConfig) *OpenRouterClient {
	client := &OpenRouterClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
		siteURL:    strings.TrimSpace(config.SiteURL),
		appName:    strings.TrimSpace(config.AppName),
	}
	if client.baseURL == "" {
		client.baseURL = "https://openrouter.ai/api/v1"
	}
	if client.timeout <= 0 {
		client.timeout = 15 * time.Second
	}
	if client.maxRetries <= 0 {
		client.maxRetries = 2
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.appName == "" {
		client.appName = "ContentPulse"
	}
	return client
}

func (c *OpenRouterClient) Available() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

func (c *OpenRouterClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrOpenRouterUnavailable
	}
	if err := validateGenerateRequest(request); err != nil {
		return GenerateResult{}, err
	}

	payload := chatCompletionsRequest{
		Model:       request.Model,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxOutputTokens,
	}
	if instructions := strings.TrimSpace(request.Instructions); instructions != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: instructions})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: request.Input})

	return withRetries(ctx, c.maxRetries, func() (GenerateResult, error) {
		return c.callChatCompletions(ctx, payload, request.Model)
	})
}

func (c *OpenRouterClient) callChatCompletions(ctx context.Context, payload chatCompletionsRequest, requestedModel string) (GenerateResult, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal openrouter payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("create openrouter request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.siteURL != "" {
		httpRequest.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appName != "" {
		httpRequest.Header.Set("X-Title", c.appName)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return GenerateResult{}, fmt.Errorf("openrouter timeout: %w", err)
		}
		return GenerateResult{}, fmt.Errorf("openrouter transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("read openrouter body: %w", err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return GenerateResult{}, newStatusError("openrouter", httpResponse.StatusCode, body)
	}

	var decoded chatCompletionsBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return GenerateResult{}, fmt.Errorf("decode openrouter response: %w", err)
	}

	text := decoded.text()
	if text == "" {
		return GenerateResult{}, errors.New("openrouter response without text output")
	}

	return GenerateResult{
		Text:    text,
		ModelID: firstNonEmpty(decoded.Model, requestedModel),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}

type chatCompletionsBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// text flattens the first choice. Some OpenRouter models return the content
// as a plain string, others as a list of typed fragments.
func (b chatCompletionsBody) text() string {
	if len(b.Choices) == 0 {
		return ""
	}
	switch content := b.Choices[0].Message.Content.(type) {
	case string:
		return strings.TrimSpace(content)
	case []any:
		var fragments []string
		for _, item := range content {
			fragment, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, _ := fragment["text"].(string); strings.TrimSpace(text) != "" {
				fragments = append(fragments, strings.TrimSpace(text))
			}
		}
		return strings.Join(fragments, "\n")
	default:
		return ""
	}
}
