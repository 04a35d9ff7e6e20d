package seed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hrygo/concierge/ai/core/embedding"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/ai/textnorm"
	"github.com/hrygo/concierge/store"
)

// Writer is the part of the store the seeder writes to.
type Writer interface {
	UpsertIntentSample(ctx context.Context, sample *store.IntentSample) (*store.IntentSample, error)
	UpsertDocumentChunk(ctx context.Context, chunk *store.DocumentChunk) (*store.DocumentChunk, error)
}

// Report counts what Apply wrote.
type Report struct {
	Intents   int `json:"intents"`
	Samples   int `json:"samples"`
	Documents int `json:"documents"`
}

// Seeder embeds and stores seed data.
type Seeder struct {
	embedder embedding.Provider
	writer   Writer
}

func NewSeeder(embedder embedding.Provider, writer Writer) *Seeder {
	return &Seeder{embedder: embedder, writer: writer}
}

// Validate rejects intent codes outside the closed intent set and empty entries.
func (f *File) Validate() error {
	for code, samples := range f.Intents {
		if _, ok := routing.ParseIntent(code); !ok {
			return fmt.Errorf("unknown intent code %q", code)
		}
		if len(samples) == 0 {
			return fmt.Errorf("intent %s has no samples", code)
		}
		for i, s := range samples {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("intent %s: sample %d is empty", code, i)
			}
		}
	}
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Content) == "" {
			return fmt.Errorf("document %d: content is empty", i)
		}
	}
	return nil
}

// Apply validates f, then embeds and upserts every sample and document.
// Samples are written in intent code order so reruns are deterministic.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Report, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	report := &Report{}
	model := s.embedder.Model()

	codes := make([]string, 0, len(f.Intents))
	for code := range f.Intents {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		intent, _ := routing.ParseIntent(code)
		for _, query := range f.Intents[code] {
			query = strings.TrimSpace(query)
			vec, err := s.embedder.Embed(ctx, query)
			if err != nil {
				return report, fmt.Errorf("embed sample %q: %w", query, err)
			}
			if _, err := s.writer.UpsertIntentSample(ctx, &store.IntentSample{
				IntentCode:  string(intent),
				SampleQuery: query,
				Model:       model,
				Embedding:   vec,
			}); err != nil {
				return report, fmt.Errorf("store sample %q: %w", query, err)
			}
			report.Samples++
		}
		report.Intents++
	}

	for _, d := range f.Documents {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return report, fmt.Errorf("embed document: %w", err)
		}
		// Chunks are filtered by the resolved location norm.
		if _, err := s.writer.UpsertDocumentChunk(ctx, &store.DocumentChunk{
			Content:   d.Content,
			Metadata:  d.Metadata,
			Province:  textnorm.Normalize(d.Province),
			Embedding: vec,
		}); err != nil {
			return report, fmt.Errorf("store document: %w", err)
		}
		report.Documents++
	}

	slog.Info("seed applied",
		"model", model,
		"intents", report.Intents,
		"samples", report.Samples,
		"documents", report.Documents)
	return report, nil
}
