package ai

import (
	"errors"
	"time"

	"github.com/hrygo/concierge/ai/core/embedding"
	"github.com/hrygo/concierge/ai/core/llm"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/internal/profile"
)

// Config represents the AI backends of the classifier.
type Config struct {
	LLM             llm.Config
	Embedding       embedding.Config
	Extractor       routing.ExtractorConfig
	VectorThreshold float32
	LLMEnabled      bool
	EmbedEnabled    bool
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		LLMEnabled:      p.IsLLMEnabled(),
		EmbedEnabled:    p.IsEmbeddingEnabled(),
		VectorThreshold: float32(p.VectorThreshold),
		Extractor: routing.ExtractorConfig{
			RPS:   p.LLMRPS,
			Burst: max(1, int(p.LLMRPS)),
		},
	}

	timeout := time.Duration(p.LLMTimeout) * time.Second
	cfg.LLM = llm.Config{
		Provider:  p.LLMProvider,
		Model:     p.LLMModel,
		APIKey:    p.LLMAPIKey,
		BaseURL:   p.LLMBaseURL,
		MaxTokens: 256,
		Timeout:   timeout,
	}

	cfg.Embedding = embedding.Config{
		Provider: p.EmbeddingProvider,
		Model:    p.EmbeddingModel,
		APIKey:   p.EmbeddingAPIKey,
		BaseURL:  p.EmbeddingBaseURL,
	}
	// Ollama serves embeddings from the same local daemon as generation.
	if p.EmbeddingProvider == "ollama" && cfg.Embedding.BaseURL == "" && p.LLMProvider == "ollama" {
		cfg.Embedding.BaseURL = p.LLMBaseURL
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLMEnabled && c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.EmbedEnabled && c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.VectorThreshold < -1 || c.VectorThreshold > 1 {
		return errors.New("vector threshold must be within [-1, 1]")
	}
	return nil
}
