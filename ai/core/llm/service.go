// Package llm provides single-shot text generation over OpenAI-compatible
// providers and Ollama.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every generation request.
const DefaultTimeout = 120 * time.Second

// ErrEmptyResponse is returned when the provider answered without content.
var ErrEmptyResponse = errors.New("empty response from LLM")

// Request is a single prompt/response exchange.
type Request struct {
	System      string
	Prompt      string
	JSON        bool // ask the provider for a JSON object
	Temperature float32
	MaxTokens   int
}

// Generator produces one completion per request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// Config represents LLM configuration.
type Config struct {
	Provider  string // openai, deepseek, siliconflow, openrouter, dashscope, ollama
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int           // default: 512
	Timeout   time.Duration // default: 120s
}

var defaultBaseURLs = map[string]string{
	"openai":      "https://api.openai.com/v1",
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"dashscope":   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"ollama":      "http://localhost:11434",
}

// NewGenerator creates a Generator for cfg.Provider.
func NewGenerator(cfg *Config) (Generator, error) {
	if cfg == nil {
		return nil, errors.New("llm config is required")
	}
	c := *cfg
	defaultURL, ok := defaultBaseURLs[c.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}

	slog.Debug("LLM: creating generator", "provider", c.Provider, "model", c.Model, "base_url", c.BaseURL)
	if c.Provider == "ollama" {
		return newOllamaGenerator(&c)
	}
	return newOpenAIGenerator(&c), nil
}

// withTimeout applies the configured request timeout. Expiry cancels the
// in-flight HTTP call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
