package models

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/skillrouter/internal/config"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaTimeout = 300 * time.Second
)

// NewOllama creates a ChatModel backed by a local Ollama runtime.
// Temperature defaults to 0 so routing stays deterministic.
func NewOllama(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}

	modelConfig := &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeout,
		Options: ollamaOptions(cfg),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &ollamaTransport{inner: http.DefaultTransport, provider: "ollama"},
		},
	}

	return einoollama.NewChatModel(ctx, modelConfig)
}

// ollamaOptions maps max_tokens and the free-form options block onto
// Ollama runtime options. JSON numbers arrive as float64.
func ollamaOptions(cfg config.ProviderConfig) *einoollama.Options {
	opts := &einoollama.Options{}

	if cfg.MaxTokens > 0 {
		opts.NumPredict = cfg.MaxTokens
	}
	if temp, ok := cfg.Options["temperature"].(float64); ok {
		opts.Temperature = float32(temp)
	}
	if numCtx, ok := cfg.Options["num_ctx"].(float64); ok {
		opts.NumCtx = int(numCtx)
	}
	if numPredict, ok := cfg.Options["num_predict"].(float64); ok {
		opts.NumPredict = int(numPredict)
	}
	if topP, ok := cfg.Options["top_p"].(float64); ok {
		opts.TopP = float32(topP)
	}
	if topK, ok := cfg.Options["top_k"].(float64); ok {
		opts.TopK = int(topK)
	}
	return opts
}

// ollamaTransport wraps an http.RoundTripper to detect non-JSON error responses
// from Ollama backends (e.g. reverse proxies returning plain text errors).
type ollamaTransport struct {
	inner    http.RoundTripper
	provider string
}

func (t *ollamaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: t.provider, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, t.unavailable(resp)
	}

	// Ollama answers with application/json or application/x-ndjson when streaming.
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return nil, t.unavailable(resp)
	}

	return resp, nil
}

func (t *ollamaTransport) unavailable(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	return &ErrModelUnavailable{
		Provider: t.provider,
		Body:     strings.TrimSpace(string(body)),
	}
}
