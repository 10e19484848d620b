package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newRouterFixture(t *testing.T, handler http.HandlerFunc, mutate func(*OpenRouterClientConfig)) *OpenRouterClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := OpenRouterClientConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}
	if mutate != nil {
		mutate(&config)
	}
	return NewOpenRouterClient(config)
}

func routerRequest() GenerateRequest {
	return GenerateRequest{
		Model:           "openai/gpt-4.1-mini",
		Instructions:    "Return JSON only",
		Input:           "test prompt",
		Temperature:     0.2,
		MaxOutputTokens: 200,
	}
}

func TestOpenRouterGenerateParsesStringContent(t *testing.T) {
	client := newRouterFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"role":"assistant","content":"{\"headlines\":[]}"}}],
			"usage":{"prompt_tokens":123,"completion_tokens":22,"total_tokens":145}
		}`))
	}, nil)

	result, err := client.Generate(context.Background(), routerRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text == "" || result.ModelID != "openai/gpt-4.1-mini" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Usage.TotalTokens != 145 {
		t.Fatalf("expected usage carried through, got %+v", result.Usage)
	}
}

func TestOpenRouterGenerateFlattensFragmentContent(t *testing.T) {
	client := newRouterFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"content":[{"type":"text","text":"line 1"},{"type":"text","text":"line 2"}]}}],
			"usage":{"prompt_tokens":5,"completion_tokens":5,"total_tokens":10}
		}`))
	}, nil)

	result, err := client.Generate(context.Background(), routerRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text != "line 1\nline 2" {
		t.Fatalf("unexpected flattened text %q", result.Text)
	}
}

func TestOpenRouterGenerateRetriesRateLimit(t *testing.T) {
	var calls int32
	client := newRouterFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"content":"{\"ok\":true}"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":10,"total_tokens":20}
		}`))
	}, func(config *OpenRouterClientConfig) {
		config.MaxRetries = 2
	})

	result, err := client.Generate(context.Background(), routerRequest())
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if result.Text == "" || atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected a second attempt, calls=%d", calls)
	}
}

func TestOpenRouterGenerateWithoutKeyIsUnavailable(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterClientConfig{})
	if client.Available() {
		t.Fatalf("client without key must not report available")
	}
	if _, err := client.Generate(context.Background(), routerRequest()); err != ErrOpenRouterUnavailable {
		t.Fatalf("expected ErrOpenRouterUnavailable, got %v", err)
	}
}

func TestOpenRouterGenerateSendsAttributionHeaders(t *testing.T) {
	client := newRouterFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("HTTP-Referer") != "https://example.com" || r.Header.Get("X-Title") != "ContentPulse" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"content":"ok"}}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}
		}`))
	}, func(config *OpenRouterClientConfig) {
		config.SiteURL = "https://example.com"
		config.AppName = "ContentPulse"
	})

	if _, err := client.Generate(context.Background(), routerRequest()); err != nil {
		t.Fatalf("expected attribution headers accepted, got %v", err)
	}
}
