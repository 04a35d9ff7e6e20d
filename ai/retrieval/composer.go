package retrieval

import (
	"context"
	"fmt"

	"github.com/hrygo/concierge/ai/core/embedding"
	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/store"
)

// Answer is the composed, cacheable part of a response.
type Answer struct {
	Intent   routing.Intent         `json:"intent"`
	Location string                 `json:"location,omitempty"`
	Province string                 `json:"province,omitempty"`
	Items    any                    `json:"items,omitempty"`
	Snippets []*store.DocumentMatch `json:"snippets,omitempty"`
}

// ComposeInput is everything a composer may read.
type ComposeInput struct {
	Request  *Request
	Analysis *routing.AnalysisResult
	Location *location.Document // nil when nothing resolved
}

// Composer builds the answer for a cache miss.
type Composer interface {
	Compose(ctx context.Context, in *ComposeInput) (*Answer, error)
}

// DocumentSearcher runs similarity search over document chunks.
type DocumentSearcher interface {
	MatchDocuments(ctx context.Context, opts *store.MatchDocumentsOptions) ([]*store.DocumentMatch, error)
}

// DocumentComposer answers from the resolved location document and, when a
// searcher is configured, attaches related knowledge snippets.
type DocumentComposer struct {
	embedder  embedding.Provider
	searcher  DocumentSearcher
	threshold float32
	maxItems  int
}

// DocumentComposerConfig configures a DocumentComposer.
type DocumentComposerConfig struct {
	Embedder  embedding.Provider
	Searcher  DocumentSearcher
	Threshold float32 // minimum snippet similarity, default 0.5
	MaxItems  int     // snippet cap, default 5
}

// NewDocumentComposer creates a composer. Snippet search is skipped when
// either Embedder or Searcher is nil.
func NewDocumentComposer(cfg DocumentComposerConfig) *DocumentComposer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 5
	}
	return &DocumentComposer{
		embedder:  cfg.Embedder,
		searcher:  cfg.Searcher,
		threshold: cfg.Threshold,
		maxItems:  cfg.MaxItems,
	}
}

// Compose implements Composer.
func (c *DocumentComposer) Compose(ctx context.Context, in *ComposeInput) (*Answer, error) {
	answer := &Answer{Intent: in.Analysis.Intent}
	if in.Location != nil {
		answer.Location = in.Location.Name
		answer.Province = in.Location.Norm
		answer.Items = itemsFor(in.Analysis.Intent, in.Location)
	}

	if !c.searchable(in.Analysis.Intent) {
		return answer, nil
	}

	vec, err := c.embedder.Embed(ctx, in.Analysis.Original)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	count := min(c.maxItems, in.Analysis.TopN)
	if count <= 0 {
		count = c.maxItems
	}
	snippets, err := c.searcher.MatchDocuments(ctx, &store.MatchDocumentsOptions{
		Embedding: vec,
		Threshold: c.threshold,
		Count:     count,
		Province:  answer.Province,
	})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	answer.Snippets = snippets
	return answer, nil
}

func (c *DocumentComposer) searchable(intent routing.Intent) bool {
	if c.embedder == nil || c.searcher == nil {
		return false
	}
	// Weather and distance are answered by live services, chitchat needs no facts.
	switch intent {
	case routing.IntentChitchat, routing.IntentAskWeather, routing.IntentAskDistance:
		return false
	}
	return true
}

// itemsFor picks the location payload matching intent.
func itemsFor(intent routing.Intent, doc *location.Document) any {
	switch intent {
	case routing.IntentAskPlaces:
		return doc.Places
	case routing.IntentAskDishes:
		return doc.Dishes
	case routing.IntentAskDetails, routing.IntentAskHotels:
		return doc.Tips
	default:
		return nil
	}
}
