package routing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/textnorm"
)

// DefaultTopN is the number of results downstream retrieval should return.
const DefaultTopN = 10

// ErrEmptyInput is returned for blank utterances.
var ErrEmptyInput = errors.New("empty input")

// Extractor produces Signal A.
type Extractor interface {
	Extract(ctx context.Context, text string) LLMSignal
}

// Classifier produces Signal B.
type Classifier interface {
	Classify(ctx context.Context, text string) VectorSignal
}

// Signals carries both raw signals for observability.
type Signals struct {
	LLM    LLMSignal    `json:"llm"`
	Vector VectorSignal `json:"vector"`
}

// AnalysisResult is built once per message and never modified.
type AnalysisResult struct {
	Original   string   `json:"original"`
	Normalized string   `json:"normalized"`
	Intent     Intent   `json:"intent"`
	City       string   `json:"city,omitempty"`
	Category   Category `json:"category"`
	TopN       int      `json:"top_n"`
	Rule       string   `json:"rule"`
	Signals    Signals  `json:"signals"`
}

// Degraded reports whether either signal fell back to its default.
func (r *AnalysisResult) Degraded() bool {
	return r.Signals.LLM.Status == StatusDegraded || r.Signals.Vector.Status == StatusDegraded
}

// Service runs both signals and arbitrates.
type Service struct {
	extractor  Extractor
	classifier Classifier
	rules      []Rule
	recorder   metrics.Recorder
}

// Config contains the configuration for the routing service.
type Config struct {
	Extractor  Extractor
	Classifier Classifier
	Rules      []Rule // default DefaultRules()
	Recorder   metrics.Recorder
}

// NewService creates a routing service.
func NewService(cfg Config) *Service {
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		extractor:  cfg.Extractor,
		classifier: cfg.Classifier,
		rules:      rules,
		recorder:   recorder,
	}
}

// Analyze classifies text. Signals A and B are independent and run
// concurrently; their failures never surface as errors.
func (s *Service) Analyze(ctx context.Context, text string) (*AnalysisResult, error) {
	original := strings.TrimSpace(text)
	if original == "" {
		return nil, ErrEmptyInput
	}
	start := time.Now()

	var a LLMSignal
	var b VectorSignal
	var g errgroup.Group
	g.Go(func() error {
		if s.extractor == nil {
			a = defaultLLMSignal(ReasonNoBackend)
			return nil
		}
		a = s.extractor.Extract(ctx, original)
		return nil
	})
	g.Go(func() error {
		if s.classifier == nil {
			b = defaultVectorSignal(StatusDegraded, ReasonNoBackend)
			return nil
		}
		b = s.classifier.Classify(ctx, original)
		return nil
	})
	_ = g.Wait()

	intent, rule := Arbitrate(s.rules, a, b.Intent)

	result := &AnalysisResult{
		Original:   original,
		Normalized: textnorm.Normalize(original),
		Intent:     intent,
		City:       a.City,
		Category:   a.Category,
		TopN:       DefaultTopN,
		Rule:       rule,
		Signals:    Signals{LLM: a, Vector: b},
	}

	if a.Status == StatusDegraded {
		s.recorder.RecordSignalDegraded("llm", a.Reason)
	}
	if b.Status == StatusDegraded {
		s.recorder.RecordSignalDegraded("vector", b.Reason)
	}
	s.recorder.RecordIntent(string(intent), rule)
	s.recorder.ObserveStage("analyze", time.Since(start))

	slog.DebugContext(ctx, "utterance analyzed",
		"text", truncate(original, 50),
		"intent", intent,
		"rule", rule,
		"city", a.City,
		"category", a.Category,
		"vector_intent", b.Intent,
		"similarity", b.Similarity,
		"degraded", result.Degraded(),
		"latency_ms", time.Since(start).Milliseconds())

	return result, nil
}
