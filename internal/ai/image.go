package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ImageGenerator produces raw image bytes for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, model, size string) ([]byte, error)
	Available() bool
}

type imagesAPIRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

// GenerateImage calls the images API and returns decoded PNG bytes. Image
// renders take much longer than text, so the call runs on a tripled timeout.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt, model, size string) ([]byte, error) {
	if !c.Available() {
		return nil, ErrOpenAIUnavailable
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	payload := imagesAPIRequest{
		Model:  firstNonEmpty(model, "gpt-image-1"),
		Prompt: prompt,
		Size:   firstNonEmpty(size, "1024x1024"),
		N:      1,
	}

	body, err := c.post(ctx, "/images/generations", payload, c.timeout*3)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].B64JSON == "" {
		return nil, errors.New("image response without data")
	}

	raw, err := base64.StdEncoding.DecodeString(decoded.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image bytes: %w", err)
	}
	return raw, nil
}
