// Package embedding turns utterances into vectors for similarity search.
//
// Query-time and sample-time vectors must come from the same model; mixing
// models silently degrades match quality without any error.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ErrEmptyEmbedding is returned when the provider returned no vector.
var ErrEmptyEmbedding = errors.New("empty embedding result")

// Provider embeds a single text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Config configures an embedding provider.
type Config struct {
	Provider   string // openai (or any OpenAI-compatible API), ollama
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int // 0 keeps the model default
	Timeout    time.Duration
}

// DefaultConfig returns the OpenAI defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		BaseURL:  "https://api.openai.com/v1",
		Timeout:  30 * time.Second,
	}
}

// NewProvider creates a Provider. A nil cfg uses DefaultConfig; zero fields
// are filled from it.
func NewProvider(cfg *Config) (Provider, error) {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	c := *cfg
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}

	switch c.Provider {
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		client, err := ollama.New(ollama.WithServerURL(c.BaseURL), ollama.WithModel(c.Model))
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		return &ollamaProvider{client: client, model: c.Model, timeout: c.Timeout}, nil
	default:
		if c.BaseURL == "" {
			c.BaseURL = def.BaseURL
		}
		if c.Model == "" {
			c.Model = def.Model
		}
		clientConfig := openai.DefaultConfig(c.APIKey)
		clientConfig.BaseURL = c.BaseURL
		return &openaiProvider{
			client:     openai.NewClientWithConfig(clientConfig),
			model:      c.Model,
			dimensions: c.Dimensions,
			timeout:    c.Timeout,
		}, nil
	}
}

type openaiProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

func (p *openaiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

func (p *openaiProvider) Model() string { return p.model }

type ollamaProvider struct {
	client  *ollama.LLM
	model   string
	timeout time.Duration
}

func (p *ollamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vectors, err := p.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}

func (p *ollamaProvider) Model() string { return p.model }
