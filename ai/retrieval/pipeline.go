package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/ai/textnorm"
)

// Request is one concierge query.
type Request struct {
	Message  string         `json:"message"`
	DocKey   string         `json:"doc_key,omitempty"`
	Province string         `json:"province,omitempty"`
	SQLTags  string         `json:"sql_tags,omitempty"`
	Filters  map[string]any `json:"filters,omitempty"`
	UserCtx  map[string]any `json:"user_ctx,omitempty"`
}

// LocationRef identifies the resolved location without its payloads.
type LocationRef struct {
	Name   string `json:"name"`
	Norm   string `json:"norm"`
	Method string `json:"method"`
}

// Response is returned by Pipeline.Handle.
type Response struct {
	Analysis *routing.AnalysisResult `json:"analysis"`
	Location *LocationRef            `json:"location,omitempty"`
	Answer   *Answer                 `json:"answer"`
	CacheKey string                  `json:"cache_key"`
	Cached   bool                    `json:"cached"`
}

// Resolution methods reported in LocationRef and metrics.
const (
	MethodRequestProvince = "request_province"
	MethodProvinceExact   = "province_exact"
	MethodText            = "text"
)

// Analyzer classifies a message.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*routing.AnalysisResult, error)
}

// LocationResolver resolves locations for a message.
type LocationResolver interface {
	FindByProvinceExact(ctx context.Context, name string) (*location.Document, error)
	FindInText(ctx context.Context, text string, extra ...string) (*location.Document, error)
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Analyzer Analyzer
	Resolver LocationResolver // optional
	Cache    Cache            // default NoopCache
	Composer Composer
	Recorder metrics.Recorder
}

// Pipeline runs analyze, resolve, cache lookup and compose for a request.
// Concurrent misses on the same key each compose; the last write wins.
type Pipeline struct {
	analyzer Analyzer
	resolver LocationResolver
	cache    Cache
	composer Composer
	recorder metrics.Recorder
}

// NewPipeline validates cfg and creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("pipeline requires an analyzer")
	}
	if cfg.Composer == nil {
		return nil, errors.New("pipeline requires a composer")
	}
	if cfg.Cache == nil {
		cfg.Cache = &NoopCache{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NopRecorder{}
	}
	return &Pipeline{
		analyzer: cfg.Analyzer,
		resolver: cfg.Resolver,
		cache:    cfg.Cache,
		composer: cfg.Composer,
		recorder: cfg.Recorder,
	}, nil
}

// Cache returns the response cache.
func (p *Pipeline) Cache() Cache {
	return p.cache
}

// Handle answers req, serving from the cache when possible. The cache is
// written only after a successful compose.
func (p *Pipeline) Handle(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, routing.ErrEmptyInput
	}
	start := time.Now()

	analysis, err := p.analyzer.Analyze(ctx, req.Message)
	if err != nil {
		return nil, err
	}

	resolveStart := time.Now()
	doc, method, err := p.resolve(ctx, req, analysis.City)
	p.recorder.ObserveStage("resolve", time.Since(resolveStart))
	if err != nil {
		return nil, fmt.Errorf("resolve location: %w", err)
	}

	// The key names the location the answer is composed from, never a
	// caller-supplied alias of it.
	var ref *LocationRef
	province := textnorm.Normalize(req.Province)
	if doc != nil {
		ref = &LocationRef{Name: doc.Name, Norm: doc.Norm, Method: method}
		province = doc.Norm
	}

	key := MakeKey(KeyParts{
		Province: province,
		City:     analysis.City,
		SQLTags:  req.SQLTags,
		Intent:   string(analysis.Intent),
		Filters:  req.Filters,
		UserCtx:  req.UserCtx,
		DocKey:   req.DocKey,
	})
	resp := &Response{Analysis: analysis, Location: ref, CacheKey: key}

	if answer, ok := p.lookup(ctx, key); ok {
		p.recorder.RecordCacheHit(p.cache.Name())
		resp.Answer = answer
		resp.Cached = true
		p.recorder.ObserveStage("handle", time.Since(start))
		return resp, nil
	}
	p.recorder.RecordCacheMiss(p.cache.Name())

	composeStart := time.Now()
	answer, err := p.composer.Compose(ctx, &ComposeInput{Request: req, Analysis: analysis, Location: doc})
	p.recorder.ObserveStage("compose", time.Since(composeStart))
	if err != nil {
		return nil, fmt.Errorf("compose answer: %w", err)
	}

	if data, err := json.Marshal(answer); err != nil {
		slog.WarnContext(ctx, "answer not cacheable", "key", key, "error", err)
	} else {
		p.cache.Set(ctx, key, data)
	}

	resp.Answer = answer
	p.recorder.ObserveStage("handle", time.Since(start))
	slog.DebugContext(ctx, "concierge query handled",
		"intent", analysis.Intent,
		"location", province,
		"cached", false,
		"latency_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// resolve honours an explicit province first. Without one it prefers the
// extracted city and falls back to scanning the message with the city as an
// extra candidate. An explicit province that does not resolve yields no
// location rather than one guessed from the message.
func (p *Pipeline) resolve(ctx context.Context, req *Request, city string) (*location.Document, string, error) {
	if p.resolver == nil {
		return nil, "", nil
	}
	if name := strings.TrimSpace(req.Province); name != "" {
		doc, err := p.resolver.FindByProvinceExact(ctx, name)
		if err != nil {
			return nil, "", err
		}
		p.recorder.RecordResolution(MethodRequestProvince, doc != nil)
		if doc == nil {
			return nil, "", nil
		}
		return doc, MethodRequestProvince, nil
	}

	if city != "" {
		doc, err := p.resolver.FindByProvinceExact(ctx, city)
		if err != nil {
			return nil, "", err
		}
		p.recorder.RecordResolution(MethodProvinceExact, doc != nil)
		if doc != nil {
			return doc, MethodProvinceExact, nil
		}
	}

	var extra []string
	if city != "" {
		extra = append(extra, city)
	}
	doc, err := p.resolver.FindInText(ctx, req.Message, extra...)
	if err != nil {
		return nil, "", err
	}
	p.recorder.RecordResolution(MethodText, doc != nil)
	if doc == nil {
		return nil, "", nil
	}
	return doc, MethodText, nil
}

func (p *Pipeline) lookup(ctx context.Context, key string) (*Answer, bool) {
	data, ok := p.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var answer Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		slog.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &answer, true
}
