package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/store"
)

type staticExtractor routing.LLMSignal

func (e staticExtractor) Extract(context.Context, string) routing.LLMSignal {
	return routing.LLMSignal(e)
}

type staticClassifier routing.VectorSignal

func (c staticClassifier) Classify(context.Context, string) routing.VectorSignal {
	return routing.VectorSignal(c)
}

type countingComposer struct {
	calls atomic.Int32
	inner Composer
	err   error
}

func (c *countingComposer) Compose(ctx context.Context, in *ComposeInput) (*Answer, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Compose(ctx, in)
}

type stubEmbedder struct{ err error }

func (e stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.5, 0.5}, e.err
}

func (stubEmbedder) Model() string { return "stub" }

type stubSearcher struct {
	opts    *store.MatchDocumentsOptions
	matches []*store.DocumentMatch
	err     error
}

func (s *stubSearcher) MatchDocuments(_ context.Context, opts *store.MatchDocumentsOptions) ([]*store.DocumentMatch, error) {
	s.opts = opts
	return s.matches, s.err
}

func testLocations() *location.Resolver {
	return location.NewResolver(location.NewMemoryStore(
		location.Document{
			Name:    "Đà Nẵng",
			Norm:    "da nang",
			Aliases: []string{"danang"},
			Places:  []any{"Bà Nà Hills", "Cầu Rồng"},
			Dishes:  []any{"Mì Quảng"},
		},
		location.Document{Name: "Hội An", Norm: "hoi an", Dishes: []any{"Cao lầu"}},
		location.Document{Name: "Miền Trung", Norm: "mien trung", Type: location.TypeRegion},
	))
}

func newTestPipeline(t *testing.T, a routing.LLMSignal, b routing.VectorSignal, composer Composer, cache Cache) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineConfig{
		Analyzer: routing.NewService(routing.Config{
			Extractor:  staticExtractor(a),
			Classifier: staticClassifier(b),
		}),
		Resolver: testLocations(),
		Cache:    cache,
		Composer: composer,
	})
	require.NoError(t, err)
	return p
}

func TestPipeline_WeatherQuestion(t *testing.T) {
	composer := &countingComposer{inner: NewDocumentComposer(DocumentComposerConfig{})}
	p := newTestPipeline(t,
		routing.LLMSignal{City: "Đà Nẵng", Category: routing.CategoryWeather, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskPlaces, Similarity: 0.7, Status: routing.StatusOK},
		composer, NewMemoryCache(MemoryConfig{}))

	resp, err := p.Handle(context.Background(), &Request{Message: "Thời tiết Đà Nẵng thế nào"})
	require.NoError(t, err)
	assert.Equal(t, routing.IntentAskWeather, resp.Analysis.Intent)
	assert.Equal(t, "Đà Nẵng", resp.Analysis.City)
	require.NotNil(t, resp.Location)
	assert.Equal(t, "da nang", resp.Location.Norm)
	assert.Equal(t, MethodProvinceExact, resp.Location.Method)
	assert.Equal(t, "v2|da nang|Đà Nẵng|-|ask_weather|{}|{}|-", resp.CacheKey)
	assert.False(t, resp.Cached)
	assert.Nil(t, resp.Answer.Items)

	again, err := p.Handle(context.Background(), &Request{Message: "Thời tiết Đà Nẵng thế nào"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, resp.Answer, again.Answer)
	assert.EqualValues(t, 1, composer.calls.Load())
}

func TestPipeline_ResolvesFromTextWithoutCity(t *testing.T) {
	p := newTestPipeline(t,
		routing.LLMSignal{Category: routing.CategoryOther, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskDishes, Status: routing.StatusOK},
		NewDocumentComposer(DocumentComposerConfig{}), nil)

	resp, err := p.Handle(context.Background(), &Request{Message: "ở hội an ăn gì ngon"})
	require.NoError(t, err)
	require.NotNil(t, resp.Location)
	assert.Equal(t, MethodText, resp.Location.Method)
	assert.Equal(t, "hoi an", resp.Answer.Province)
	assert.Equal(t, []any{"Cao lầu"}, resp.Answer.Items)
}

func TestPipeline_CityFallsBackToText(t *testing.T) {
	// The extracted city is not a province key but still appears as a phrase.
	p := newTestPipeline(t,
		routing.LLMSignal{City: "thành phố Đà Nẵng", Category: routing.CategoryPlace, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskPlaces, Status: routing.StatusOK},
		NewDocumentComposer(DocumentComposerConfig{}), nil)

	resp, err := p.Handle(context.Background(), &Request{Message: "thành phố Đà Nẵng có gì chơi"})
	require.NoError(t, err)
	require.NotNil(t, resp.Location)
	assert.Equal(t, MethodText, resp.Location.Method)
	assert.Equal(t, []any{"Bà Nà Hills", "Cầu Rồng"}, resp.Answer.Items)
}

func TestPipeline_DocKeyDoesNotMaskLocation(t *testing.T) {
	composer := &countingComposer{inner: NewDocumentComposer(DocumentComposerConfig{})}
	p := newTestPipeline(t,
		routing.LLMSignal{Category: routing.CategoryOther, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskDishes, Status: routing.StatusOK},
		composer, NewMemoryCache(MemoryConfig{}))
	ctx := context.Background()

	hoiAn, err := p.Handle(ctx, &Request{Message: "ở hội an ăn gì ngon", DocKey: "chat-1"})
	require.NoError(t, err)
	assert.Equal(t, "v2|hoi an|-|-|ask_dishes|{}|{}|chat-1", hoiAn.CacheKey)
	assert.Equal(t, []any{"Cao lầu"}, hoiAn.Answer.Items)

	daNang, err := p.Handle(ctx, &Request{Message: "ở đà nẵng ăn gì ngon", DocKey: "chat-1"})
	require.NoError(t, err)
	assert.False(t, daNang.Cached)
	assert.NotEqual(t, hoiAn.CacheKey, daNang.CacheKey)
	assert.Equal(t, "da nang", daNang.Answer.Province)
	assert.Equal(t, []any{"Mì Quảng"}, daNang.Answer.Items)

	again, err := p.Handle(ctx, &Request{Message: "ở hội an ăn gì ngon", DocKey: "chat-1"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, "hoi an", again.Answer.Province)
	assert.EqualValues(t, 2, composer.calls.Load())
}

func TestPipeline_ExplicitProvince(t *testing.T) {
	p := newTestPipeline(t,
		routing.LLMSignal{Category: routing.CategoryOther, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskDishes, Status: routing.StatusOK},
		NewDocumentComposer(DocumentComposerConfig{}), NewMemoryCache(MemoryConfig{}))
	ctx := context.Background()

	t.Run("province wins over the message", func(t *testing.T) {
		resp, err := p.Handle(ctx, &Request{Message: "ở hội an ăn gì ngon", Province: "Đà Nẵng"})
		require.NoError(t, err)
		require.NotNil(t, resp.Location)
		assert.Equal(t, MethodRequestProvince, resp.Location.Method)
		assert.Equal(t, "da nang", resp.Answer.Province)
		assert.Equal(t, []any{"Mì Quảng"}, resp.Answer.Items)
		assert.Equal(t, "v2|da nang|-|-|ask_dishes|{}|{}|-", resp.CacheKey)
	})

	t.Run("alias keys on the resolved norm", func(t *testing.T) {
		resp, err := p.Handle(ctx, &Request{Message: "ăn gì ngon", Province: "danang"})
		require.NoError(t, err)
		assert.Equal(t, "v2|da nang|-|-|ask_dishes|{}|{}|-", resp.CacheKey)
		assert.True(t, resp.Cached)
	})

	t.Run("unknown province resolves nothing", func(t *testing.T) {
		resp, err := p.Handle(ctx, &Request{Message: "ở hội an ăn gì ngon", Province: "Atlantis"})
		require.NoError(t, err)
		assert.Nil(t, resp.Location)
		assert.Empty(t, resp.Answer.Province)
		assert.Nil(t, resp.Answer.Items)
		assert.Equal(t, "v2|atlantis|-|-|ask_dishes|{}|{}|-", resp.CacheKey)
	})
}

func TestPipeline_KeyDependsOnRequestFields(t *testing.T) {
	composer := &countingComposer{inner: NewDocumentComposer(DocumentComposerConfig{})}
	p := newTestPipeline(t,
		routing.LLMSignal{Category: routing.CategoryOther, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskHotels, Status: routing.StatusOK},
		composer, NewMemoryCache(MemoryConfig{}))
	ctx := context.Background()

	first, err := p.Handle(ctx, &Request{Message: "khách sạn", Filters: map[string]any{"stars": 4, "budget": 200}})
	require.NoError(t, err)
	second, err := p.Handle(ctx, &Request{Message: "khách sạn", Filters: map[string]any{"budget": 200, "stars": 4}})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.CacheKey, second.CacheKey)

	third, err := p.Handle(ctx, &Request{Message: "khách sạn", Filters: map[string]any{"stars": 5}})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.EqualValues(t, 2, composer.calls.Load())
}

func TestPipeline_ComposeErrorIsNotCached(t *testing.T) {
	cache := NewMemoryCache(MemoryConfig{})
	composer := &countingComposer{err: errors.New("upstream down")}
	p := newTestPipeline(t,
		routing.LLMSignal{Category: routing.CategoryOther, Status: routing.StatusOK},
		routing.VectorSignal{Intent: routing.IntentAskHotels, Status: routing.StatusOK},
		composer, cache)

	_, err := p.Handle(context.Background(), &Request{Message: "khách sạn"})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Size)

	composer.err = nil
	composer.inner = NewDocumentComposer(DocumentComposerConfig{})
	resp, err := p.Handle(context.Background(), &Request{Message: "khách sạn"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestPipeline_EmptyMessage(t *testing.T) {
	p := newTestPipeline(t, routing.LLMSignal{}, routing.VectorSignal{}, NewDocumentComposer(DocumentComposerConfig{}), nil)
	_, err := p.Handle(context.Background(), &Request{Message: "  "})
	assert.ErrorIs(t, err, routing.ErrEmptyInput)
	_, err = p.Handle(context.Background(), nil)
	assert.ErrorIs(t, err, routing.ErrEmptyInput)
}

func TestPipeline_RecordsCacheMetrics(t *testing.T) {
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	p, err := NewPipeline(PipelineConfig{
		Analyzer: routing.NewService(routing.Config{
			Extractor:  staticExtractor{City: "Đà Nẵng", Category: routing.CategoryPlace, Status: routing.StatusOK},
			Classifier: staticClassifier{Intent: routing.IntentAskPlaces, Status: routing.StatusOK},
		}),
		Resolver: testLocations(),
		Cache:    NewMemoryCache(MemoryConfig{}),
		Composer: NewDocumentComposer(DocumentComposerConfig{}),
		Recorder: exporter,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.Handle(context.Background(), &Request{Message: "Đà Nẵng có gì chơi"})
		require.NoError(t, err)
	}

	hits, err := exporter.GetRegistry().Gather()
	require.NoError(t, err)
	var hitCount, missCount float64
	for _, f := range hits {
		for _, m := range f.GetMetric() {
			switch f.GetName() {
			case "concierge_retrieval_cache_hits_total":
				hitCount += m.GetCounter().GetValue()
			case "concierge_retrieval_cache_misses_total":
				missCount += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), hitCount)
	assert.Equal(t, float64(1), missCount)
	assert.Equal(t, 1, testutil.CollectAndCount(exporter.GetRegistry(), "concierge_location_resolutions_total"))
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{Composer: NewDocumentComposer(DocumentComposerConfig{})})
	assert.Error(t, err)
	_, err = NewPipeline(PipelineConfig{Analyzer: routing.NewService(routing.Config{})})
	assert.Error(t, err)

	p, err := NewPipeline(PipelineConfig{
		Analyzer: routing.NewService(routing.Config{}),
		Composer: NewDocumentComposer(DocumentComposerConfig{}),
	})
	require.NoError(t, err)
	assert.Equal(t, "noop", p.Cache().Name())
}

func TestDocumentComposer(t *testing.T) {
	ctx := context.Background()
	doc := &location.Document{Name: "Đà Nẵng", Norm: "da nang", Places: []any{"Bà Nà"}, Tips: "mang áo mưa"}

	t.Run("snippets filtered by province", func(t *testing.T) {
		searcher := &stubSearcher{matches: []*store.DocumentMatch{{ID: 1, Content: "Bà Nà Hills", Similarity: 0.9}}}
		c := NewDocumentComposer(DocumentComposerConfig{Embedder: stubEmbedder{}, Searcher: searcher, MaxItems: 3})

		answer, err := c.Compose(ctx, &ComposeInput{
			Analysis: &routing.AnalysisResult{Original: "Đà Nẵng có gì chơi", Intent: routing.IntentAskPlaces, TopN: 10},
			Location: doc,
		})
		require.NoError(t, err)
		assert.Equal(t, []any{"Bà Nà"}, answer.Items)
		require.Len(t, answer.Snippets, 1)
		require.NotNil(t, searcher.opts)
		assert.Equal(t, "da nang", searcher.opts.Province)
		assert.Equal(t, 3, searcher.opts.Count)
	})

	t.Run("weather skips search", func(t *testing.T) {
		searcher := &stubSearcher{}
		c := NewDocumentComposer(DocumentComposerConfig{Embedder: stubEmbedder{}, Searcher: searcher})
		answer, err := c.Compose(ctx, &ComposeInput{
			Analysis: &routing.AnalysisResult{Intent: routing.IntentAskWeather, TopN: 10},
			Location: doc,
		})
		require.NoError(t, err)
		assert.Nil(t, searcher.opts)
		assert.Nil(t, answer.Items)
		assert.Equal(t, "Đà Nẵng", answer.Location)
	})

	t.Run("details use tips", func(t *testing.T) {
		c := NewDocumentComposer(DocumentComposerConfig{})
		answer, err := c.Compose(ctx, &ComposeInput{
			Analysis: &routing.AnalysisResult{Intent: routing.IntentAskDetails},
			Location: doc,
		})
		require.NoError(t, err)
		assert.Equal(t, "mang áo mưa", answer.Items)
	})

	t.Run("search errors propagate", func(t *testing.T) {
		c := NewDocumentComposer(DocumentComposerConfig{
			Embedder: stubEmbedder{},
			Searcher: &stubSearcher{err: errors.New("pool exhausted")},
		})
		_, err := c.Compose(ctx, &ComposeInput{Analysis: &routing.AnalysisResult{Intent: routing.IntentAskHotels}})
		assert.ErrorContains(t, err, "pool exhausted")
	})

	t.Run("embed errors propagate", func(t *testing.T) {
		c := NewDocumentComposer(DocumentComposerConfig{
			Embedder: stubEmbedder{err: errors.New("quota")},
			Searcher: &stubSearcher{},
		})
		_, err := c.Compose(ctx, &ComposeInput{Analysis: &routing.AnalysisResult{Intent: routing.IntentAskPromotions}})
		assert.ErrorContains(t, err, "quota")
	})
}
