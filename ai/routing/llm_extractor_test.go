package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/concierge/ai/core/llm"
	"github.com/hrygo/concierge/ai/metrics"
)

type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	requests []llm.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("generate: %w", ctx.Err())
		}
	}
	return g.response, g.err
}

func (g *fakeGenerator) Provider() string { return "fake" }
func (g *fakeGenerator) Model() string    { return "fake-model" }

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		want       LLMSignal
		wantErr    bool
		wantReason string
	}{
		{
			name: "plain json",
			raw:  `{"city":"Đà Nẵng","category":"weather"}`,
			want: LLMSignal{City: "Đà Nẵng", Category: CategoryWeather, Status: StatusOK},
		},
		{
			name: "null city",
			raw:  `{"city":null,"category":"other"}`,
			want: LLMSignal{Category: CategoryOther, Status: StatusOK},
		},
		{
			name: "string null city",
			raw:  `{"city":"null","category":"place"}`,
			want: LLMSignal{Category: CategoryPlace, Status: StatusOK},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"city\": \"Huế\", \"category\": \"place\"}\n```",
			want: LLMSignal{City: "Huế", Category: CategoryPlace, Status: StatusOK},
		},
		{
			name: "prose around object",
			raw:  `Sure! Here it is: {"city": " Hà Nội ", "category": "Distance"} hope it helps`,
			want: LLMSignal{City: "Hà Nội", Category: CategoryDistance, Status: StatusOK},
		},
		{
			name:       "not json",
			raw:        "I cannot help with that",
			wantErr:    true,
			wantReason: ReasonParseError,
		},
		{
			name:       "broken json",
			raw:        `{"city": "Huế", "category": }`,
			wantErr:    true,
			wantReason: ReasonParseError,
		},
		{
			name:       "unknown category keeps city",
			raw:        `{"city":"Huế","category":"food"}`,
			want:       LLMSignal{City: "Huế", Category: CategoryOther, Status: StatusDegraded, Reason: ReasonUnknownCategory},
			wantErr:    true,
			wantReason: ReasonUnknownCategory,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExtraction(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, StatusDegraded, got.Status)
				assert.Equal(t, tt.wantReason, got.Reason)
				assert.Equal(t, CategoryOther, got.Category)
				if tt.want.City != "" {
					assert.Equal(t, tt.want.City, got.City)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMExtractor_Extract(t *testing.T) {
	ctx := context.Background()

	t.Run("sends json request with prompt", func(t *testing.T) {
		gen := &fakeGenerator{response: `{"city":"Đà Nẵng","category":"weather"}`}
		e := NewLLMExtractor(gen, ExtractorConfig{}, nil)

		got := e.Extract(ctx, "Thời tiết Đà Nẵng thế nào")
		assert.Equal(t, LLMSignal{City: "Đà Nẵng", Category: CategoryWeather, Status: StatusOK}, got)

		require.Len(t, gen.requests, 1)
		req := gen.requests[0]
		assert.True(t, req.JSON)
		assert.Equal(t, ExtractionPrompt, req.System)
		assert.Equal(t, "Thời tiết Đà Nẵng thế nào", req.Prompt)
		assert.Zero(t, req.Temperature)
	})

	t.Run("transport error degrades", func(t *testing.T) {
		e := NewLLMExtractor(&fakeGenerator{err: errors.New("connection refused")}, ExtractorConfig{}, nil)
		got := e.Extract(ctx, "xin chào")
		assert.Equal(t, defaultLLMSignal(ReasonLLMError), got)
	})

	t.Run("timeout degrades", func(t *testing.T) {
		e := NewLLMExtractor(&fakeGenerator{delay: time.Second}, ExtractorConfig{}, nil)
		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		got := e.Extract(tctx, "xin chào")
		assert.Equal(t, defaultLLMSignal(ReasonTimeout), got)
	})

	t.Run("no generator", func(t *testing.T) {
		got := NewLLMExtractor(nil, ExtractorConfig{}, nil).Extract(ctx, "xin chào")
		assert.Equal(t, ReasonNoBackend, got.Reason)
		assert.Equal(t, CategoryOther, got.Category)
	})

	t.Run("rate limit wait bounded by context", func(t *testing.T) {
		gen := &fakeGenerator{response: `{"city":null,"category":"other"}`}
		e := NewLLMExtractor(gen, ExtractorConfig{RPS: 0.001, Burst: 1}, nil)
		assert.Equal(t, StatusOK, e.Extract(ctx, "một").Status)

		tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		got := e.Extract(tctx, "hai")
		assert.Equal(t, ReasonRateLimited, got.Reason)
		assert.Len(t, gen.requests, 1)
	})

	t.Run("records latency", func(t *testing.T) {
		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
		gen := &fakeGenerator{response: `{"city":null,"category":"other"}`}
		NewLLMExtractor(gen, ExtractorConfig{}, exporter).Extract(ctx, "chào")

		families, err := exporter.GetRegistry().Gather()
		require.NoError(t, err)
		var found bool
		for _, f := range families {
			if f.GetName() == "concierge_llm_latency_seconds" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestExtractJSONObject(t *testing.T) {
	body, ok := extractJSONObject("```\n{\"a\":1}\n```")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, body)

	_, ok = extractJSONObject("}{")
	assert.False(t, ok)
}
