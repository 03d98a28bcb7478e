package rewrite_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/rewrite"
)

func TestProxyRewriter(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "SUBJECT: hi\nBODY: there"})
	}))
	defer srv.Close()

	r := rewrite.NewProxyRewriter(srv.URL, srv.Client())
	text, err := r.Rewrite(context.Background(), "write something")
	require.NoError(t, err)
	assert.Equal(t, "SUBJECT: hi\nBODY: there", text)
	assert.Equal(t, "write something", got["prompt"])
}

func TestProxyRewriterStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := rewrite.NewProxyRewriter(srv.URL, srv.Client()).Rewrite(context.Background(), "x")
	assert.ErrorContains(t, err, "502")
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}

	r, err := rewrite.FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg.Rewrite.Provider = "proxy"
	_, err = rewrite.FromConfig(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Rewrite.ProxyURL = "http://localhost:9000/rewrite"
	r, err = rewrite.FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &rewrite.ProxyRewriter{}, r)

	cfg.Rewrite.Provider = "gemini"
	_, err = rewrite.FromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "API key is required")

	cfg.Rewrite.Provider = "carrier-pigeon"
	_, err = rewrite.FromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
