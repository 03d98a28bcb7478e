// internal/rewrite/rewrite.go
package rewrite

import (
	"context"
	"fmt"

	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/service"
)

// FromConfig picks the rewriter for the configured provider. "none" returns
// nil, which disables personalization.
func FromConfig(ctx context.Context, cfg *config.Config) (service.Rewriter, error) {
	switch cfg.Rewrite.Provider {
	case "", "none":
		return nil, nil
	case "gemini":
		r, err := NewGeminiRewriter(ctx, cfg.Rewrite.GenAIAPIKey, cfg.Rewrite.GenAIModel)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "proxy":
		if cfg.Rewrite.ProxyURL == "" {
			return nil, fmt.Errorf("REWRITE_PROXY_URL is required for the proxy provider")
		}
		return NewProxyRewriter(cfg.Rewrite.ProxyURL, nil), nil
	}
	return nil, fmt.Errorf("unknown rewrite provider %q", cfg.Rewrite.Provider)
}
