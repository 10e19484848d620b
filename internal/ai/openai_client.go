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

type OpenAIClientConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client
	Organization string
}

// OpenAIClient talks to the OpenAI Responses and Images APIs. It is the
// primary text provider and the only image provider.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	maxRetries   int
	httpClient   *http.Client
	organization string
}

func NewOpenAIClient(config OpenAIClientConfig) *OpenAIClient {
	client := &OpenAIClient{
		apiKey:       strings.TrimSpace(config.APIKey),
		baseURL:      strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:      config.Timeout,
		maxRetries:   config.MaxRetries,
		httpClient:   config.HTTPClient,
		organization: strings.TrimSpace(config.Organization),
	}
	if client.baseURL == "" {
		client.baseURL = "https://api.openai.com/v1"
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
	return client
}

func (c *OpenAIClient) Available() bool {
	return c.apiKey != ""
}

func (c *OpenAIClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrOpenAIUnavailable
	}
	if err := validateGenerateRequest(request); err != nil {
		return GenerateResult{}, err
	}

	payload := responsesAPIRequest{
		Model:           request.Model,
		Input:           request.Input,
		Instructions:    request.Instructions,
		Temperature:     request.Temperature,
		MaxOutputTokens: request.MaxOutputTokens,
	}

	return withRetries(ctx, c.maxRetries, func() (GenerateResult, error) {
		body, err := c.post(ctx, "/responses", payload, c.timeout)
		if err != nil {
			return GenerateResult{}, err
		}
		return decodeResponsesBody(body, request.Model)
	})
}

// post sends a JSON payload and returns the raw 2xx body. Non-2xx responses
// come back as *statusError so withRetries can classify them.
func (c *OpenAIClient) post(ctx context.Context, path string, payload any, timeout time.Duration) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal openai payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create openai request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.organization != "" {
		httpRequest.Header.Set("OpenAI-Organization", c.organization)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("openai timeout: %w", err)
		}
		return nil, fmt.Errorf("openai transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai body: %w", err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return nil, newStatusError("openai", httpResponse.StatusCode, body)
	}
	return body, nil
}

type responsesAPIRequest struct {
	Model           string  `json:"model"`
	Input           string  `json:"input"`
	Instructions    string  `json:"instructions,omitempty"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

type responsesAPIBody struct {
	Model  string `json:"model"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	OutputText string `json:"output_text"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func decodeResponsesBody(body []byte, requestedModel string) (GenerateResult, error) {
	var decoded responsesAPIBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return GenerateResult{}, fmt.Errorf("decode openai response: %w", err)
	}

	text := strings.TrimSpace(decoded.OutputText)
	if text == "" {
		var fragments []string
		for _, output := range decoded.Output {
			for _, content := range output.Content {
				if content.Type != "output_text" && content.Type != "text" {
					continue
				}
				if fragment := strings.TrimSpace(content.Text); fragment != "" {
					fragments = append(fragments, fragment)
				}
			}
		}
		text = strings.Join(fragments, "\n")
	}
	if text == "" {
		return GenerateResult{}, errors.New("openai response without text output")
	}

	return GenerateResult{
		Text:    text,
		ModelID: firstNonEmpty(decoded.Model, requestedModel),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.InputTokens,
			OutputTokens: decoded.Usage.OutputTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}
