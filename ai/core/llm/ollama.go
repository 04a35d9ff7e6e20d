package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// ollamaGenerator talks to a local Ollama server. Ollama fixes the output
// format per client, so a second client is kept for JSON requests.
type ollamaGenerator struct {
	text    *ollama.LLM
	json    *ollama.LLM
	model   string
	timeout time.Duration
}

func newOllamaGenerator(cfg *Config) (*ollamaGenerator, error) {
	base := []ollama.Option{
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(newHTTPClient()),
	}
	text, err := ollama.New(base...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	jsonOpts := append(append([]ollama.Option{}, base...), ollama.WithFormat("json"))
	jsonLLM, err := ollama.New(jsonOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama json client: %w", err)
	}
	return &ollamaGenerator{text: text, json: jsonLLM, model: cfg.Model, timeout: cfg.Timeout}, nil
}

func (g *ollamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	client := g.text
	if req.JSON {
		client = g.json
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	slog.Debug("LLM: response received",
		"provider", "ollama",
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.Choices[0].Content, nil
}

func (g *ollamaGenerator) Provider() string { return "ollama" }

func (g *ollamaGenerator) Model() string { return g.model }
