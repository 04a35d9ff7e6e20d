package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/concierge/ai/core/llm"
	"github.com/hrygo/concierge/ai/metrics"
)

// ExtractionPrompt asks for the location entity and a coarse category.
const ExtractionPrompt = `You are the intent parser of a Vietnamese travel and hotel assistant.
Read the user message and answer with one JSON object and nothing else:
{"city": string or null, "category": "weather" | "place" | "distance" | "other"}

Rules:
- "city" is the province, city or place the user mentions, copied as written. Use null when none is mentioned.
- "weather": questions about weather, temperature, rain or climate.
- "place": questions about places to visit, sights, attractions or things to do.
- "distance": questions about how far, how long or how to travel between places.
- "other": everything else.`

// LLMExtractor produces Signal A. It never returns an error; failures yield
// {city: "", category: other} tagged as degraded.
type LLMExtractor struct {
	generator llm.Generator
	limiter   *rate.Limiter
	recorder  metrics.Recorder
}

// ExtractorConfig configures the LLM extractor.
type ExtractorConfig struct {
	// RPS limits outgoing LLM calls per second. Zero disables limiting.
	RPS   float64
	Burst int
}

// NewLLMExtractor creates an extractor. A nil generator makes every call
// degrade with ReasonNoBackend.
func NewLLMExtractor(generator llm.Generator, cfg ExtractorConfig, recorder metrics.Recorder) *LLMExtractor {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &LLMExtractor{generator: generator, limiter: limiter, recorder: recorder}
}

// Extract runs the extraction prompt against text.
func (e *LLMExtractor) Extract(ctx context.Context, text string) LLMSignal {
	if e.generator == nil {
		return defaultLLMSignal(ReasonNoBackend)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return defaultLLMSignal(ReasonRateLimited)
	}

	start := time.Now()
	raw, err := e.generator.Generate(ctx, llm.Request{
		System:      ExtractionPrompt,
		Prompt:      text,
		JSON:        true,
		Temperature: 0,
		MaxTokens:   128,
	})
	e.recorder.RecordLLMLatency(e.generator.Model(), e.generator.Provider(), time.Since(start))
	if err != nil {
		reason := ReasonLLMError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		slog.WarnContext(ctx, "llm extraction failed", "reason", reason, "error", err)
		return defaultLLMSignal(reason)
	}

	signal, err := parseExtraction(raw)
	if err != nil {
		slog.WarnContext(ctx, "llm extraction unparsable", "response", truncate(raw, 200), "error", err)
	}
	return signal
}

type extractionResponse struct {
	City     *string `json:"city"`
	Category string  `json:"category"`
}

// parseExtraction decodes the model answer, tolerating markdown fences and
// prose around the JSON object.
func parseExtraction(raw string) (LLMSignal, error) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return defaultLLMSignal(ReasonParseError), errors.New("no JSON object in response")
	}

	var resp extractionResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return defaultLLMSignal(ReasonParseError), fmt.Errorf("decode extraction: %w", err)
	}

	city := ""
	if resp.City != nil {
		city = strings.TrimSpace(*resp.City)
		if strings.EqualFold(city, "null") || strings.EqualFold(city, "none") {
			city = ""
		}
	}

	category, known := ParseCategory(resp.Category)
	if !known {
		s := LLMSignal{City: city, Category: CategoryOther, Status: StatusDegraded, Reason: ReasonUnknownCategory}
		return s, fmt.Errorf("unknown category %q", resp.Category)
	}
	return LLMSignal{City: city, Category: category, Status: StatusOK}, nil
}

func extractJSONObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		var jsonLines []string
		inJSON := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inJSON = !inJSON
				continue
			}
			if inJSON {
				jsonLines = append(jsonLines, line)
			}
		}
		s = strings.Join(jsonLines, "\n")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
