// internal/rewrite/proxy.go
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ProxyRewriter posts the prompt to an HTTP service that fronts the model.
type ProxyRewriter struct {
	url    string
	client *http.Client
}

func NewProxyRewriter(url string, client *http.Client) *ProxyRewriter {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyRewriter{url: url, client: client}
}

type proxyResponse struct {
	Text string `json:"text"`
}

func (r *ProxyRewriter) Rewrite(ctx context.Context, prompt string) (string, error) {
	requestBody, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rewrite proxy returned status code %d", resp.StatusCode)
	}

	var out proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	return out.Text, nil
}
