package routing

import (
	"context"
	"log/slog"

	"github.com/hrygo/concierge/ai/core/embedding"
	"github.com/hrygo/concierge/store"
)

// DefaultThreshold is the minimum cosine similarity for a sample match.
const DefaultThreshold = 0.65

// IntentMatcher searches pre-embedded sample utterances.
type IntentMatcher interface {
	MatchIntent(ctx context.Context, opts *store.MatchIntentOptions) ([]*store.IntentMatch, error)
}

// VectorClassifier produces Signal B: the intent of the single closest
// sample above the threshold, or ask_details.
type VectorClassifier struct {
	embedder  embedding.Provider
	matcher   IntentMatcher
	threshold float32
}

// NewVectorClassifier creates a classifier. A threshold <= 0 uses DefaultThreshold.
func NewVectorClassifier(embedder embedding.Provider, matcher IntentMatcher, threshold float32) *VectorClassifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &VectorClassifier{embedder: embedder, matcher: matcher, threshold: threshold}
}

// Classify never fails; failures yield ask_details tagged as degraded.
func (c *VectorClassifier) Classify(ctx context.Context, text string) VectorSignal {
	if c.embedder == nil || c.matcher == nil {
		return defaultVectorSignal(StatusDegraded, ReasonNoBackend)
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "intent embedding failed", "error", err)
		return defaultVectorSignal(StatusDegraded, ReasonEmbedError)
	}

	matches, err := c.matcher.MatchIntent(ctx, &store.MatchIntentOptions{
		Embedding: vec,
		Threshold: c.threshold,
		Count:     1,
	})
	if err != nil {
		slog.WarnContext(ctx, "intent similarity search failed", "error", err)
		return defaultVectorSignal(StatusDegraded, ReasonSearchError)
	}
	if len(matches) == 0 {
		return defaultVectorSignal(StatusNoMatch, "")
	}

	top := matches[0]
	intent, known := ParseIntent(top.IntentCode)
	if !known {
		slog.WarnContext(ctx, "intent sample has unknown code", "intent_code", top.IntentCode)
		s := defaultVectorSignal(StatusDegraded, ReasonUnknownIntent)
		s.Similarity = top.Similarity
		s.SampleQuery = top.SampleQuery
		return s
	}
	return VectorSignal{
		Intent:      intent,
		Similarity:  top.Similarity,
		SampleQuery: top.SampleQuery,
		Status:      StatusOK,
	}
}
