// Package concierge assembles the classifier, location resolver and retrieval
// pipeline from a profile. The server and the CLI share it.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hrygo/concierge/ai"
	"github.com/hrygo/concierge/ai/core/embedding"
	"github.com/hrygo/concierge/ai/core/llm"
	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/retrieval"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/internal/profile"
	"github.com/hrygo/concierge/store"
	"github.com/hrygo/concierge/store/db"
	locmongo "github.com/hrygo/concierge/store/mongo"
)

// Components are the collaborators of a Concierge. Nil AI backends or a nil
// Store make the corresponding signal degrade instead of failing.
type Components struct {
	Store           *store.Store
	Locations       location.Store
	Cache           retrieval.Cache
	Generator       llm.Generator
	Embedder        embedding.Provider
	Recorder        metrics.Recorder
	Extractor       routing.ExtractorConfig
	VectorThreshold float32
}

// Concierge is the assembled core.
type Concierge struct {
	Router   *routing.Service
	Resolver *location.Resolver
	Pipeline *retrieval.Pipeline
	Store    *store.Store
	Embedder embedding.Provider

	closers []func(context.Context) error
}

// New wires components together.
func New(c Components) (*Concierge, error) {
	if c.Recorder == nil {
		c.Recorder = metrics.NopRecorder{}
	}
	if c.Locations == nil {
		c.Locations = location.NewMemoryStore()
	}

	var extractor routing.Extractor
	if c.Generator != nil {
		extractor = routing.NewLLMExtractor(c.Generator, c.Extractor, c.Recorder)
	}

	// Interface fields stay nil rather than holding a typed nil pointer.
	var matcher routing.IntentMatcher
	var searcher retrieval.DocumentSearcher
	if c.Store != nil {
		matcher = c.Store
		searcher = c.Store
	}
	var classifier routing.Classifier
	if c.Embedder != nil && matcher != nil {
		classifier = routing.NewVectorClassifier(c.Embedder, matcher, c.VectorThreshold)
	}

	router := routing.NewService(routing.Config{
		Extractor:  extractor,
		Classifier: classifier,
		Recorder:   c.Recorder,
	})
	resolver := location.NewResolver(c.Locations)

	pipeline, err := retrieval.NewPipeline(retrieval.PipelineConfig{
		Analyzer: router,
		Resolver: resolver,
		Cache:    c.Cache,
		Composer: retrieval.NewDocumentComposer(retrieval.DocumentComposerConfig{
			Embedder: c.Embedder,
			Searcher: searcher,
		}),
		Recorder: c.Recorder,
	})
	if err != nil {
		return nil, err
	}

	return &Concierge{
		Router:   router,
		Resolver: resolver,
		Pipeline: pipeline,
		Store:    c.Store,
		Embedder: c.Embedder,
	}, nil
}

// Build opens every backend named by p and wires them. Backends that are not
// configured are skipped; backends that are configured but unreachable fail.
func Build(ctx context.Context, p *profile.Profile, recorder metrics.Recorder) (*Concierge, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI config: %w", err)
	}

	comps := Components{
		Recorder:        recorder,
		Extractor:       aiConfig.Extractor,
		VectorThreshold: aiConfig.VectorThreshold,
	}
	var closers []func(context.Context) error
	fail := func(err error) (*Concierge, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
		return nil, err
	}

	if aiConfig.LLMEnabled {
		gen, err := llm.NewGenerator(&aiConfig.LLM)
		if err != nil {
			return fail(fmt.Errorf("create LLM generator: %w", err))
		}
		comps.Generator = gen
		slog.Info("LLM extractor enabled", "provider", gen.Provider(), "model", gen.Model())
	} else {
		slog.Warn("LLM not configured, city/category extraction will degrade", "provider", p.LLMProvider)
	}

	if aiConfig.EmbedEnabled {
		emb, err := embedding.NewProvider(&aiConfig.Embedding)
		if err != nil {
			return fail(fmt.Errorf("create embedding provider: %w", err))
		}
		comps.Embedder = emb
	}

	if p.Driver != "" {
		driver, err := db.NewDBDriver(p)
		if err != nil {
			return fail(err)
		}
		st := store.New(driver)
		closers = append(closers, func(context.Context) error { return st.Close() })
		if err := st.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate %s store: %w", p.Driver, err))
		}
		comps.Store = st
	} else {
		slog.Warn("no vector store configured, vector classification will degrade")
	}

	if comps.Store != nil && comps.Embedder != nil {
		coverage, err := routing.AuditSamples(ctx, comps.Store, comps.Embedder.Model())
		if err != nil {
			return fail(fmt.Errorf("audit intent samples: %w", err))
		}
		coverage.Log(ctx)
	}

	switch {
	case p.MongoURI != "":
		ls, err := locmongo.Connect(ctx, locmongo.Config{
			URI:        p.MongoURI,
			Database:   p.MongoDatabase,
			Collection: p.MongoCollection,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ls.Close)
		comps.Locations = ls
	case p.LocationsFile != "":
		ms, err := loadLocationsFile(p.LocationsFile)
		if err != nil {
			return fail(err)
		}
		slog.Info("loaded location fixtures", "file", p.LocationsFile, "count", ms.Len())
		comps.Locations = ms
	default:
		slog.Warn("no location source configured, location resolution disabled")
	}

	switch p.CacheBackend {
	case "redis":
		rc, err := retrieval.NewRedisCache(ctx, retrieval.RedisConfig{
			Addr:     p.RedisAddr,
			Password: p.RedisPassword,
			DB:       p.RedisDB,
			TTL:      p.CacheTTL,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return rc.Close() })
		comps.Cache = rc
	case "noop":
		comps.Cache = &retrieval.NoopCache{}
	default:
		comps.Cache = retrieval.NewMemoryCache(retrieval.MemoryConfig{
			Capacity: p.CacheCapacity,
			TTL:      p.CacheTTL,
		})
	}

	c, err := New(comps)
	if err != nil {
		return fail(err)
	}
	c.closers = closers
	return c, nil
}

// Close releases backends opened by Build in reverse order.
func (c *Concierge) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func loadLocationsFile(path string) (*location.MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()
	return location.LoadMemoryStore(f)
}
