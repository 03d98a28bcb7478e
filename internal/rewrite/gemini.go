// internal/rewrite/gemini.go
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiRewriter calls the Gemini API directly.
type GeminiRewriter struct {
	client *genai.Client
	model  string
}

func NewGeminiRewriter(ctx context.Context, apiKey, model string) (*GeminiRewriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiRewriter{client: client, model: model}, nil
}

func (r *GeminiRewriter) Rewrite(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from %s", r.model)
	}
	return text, nil
}
