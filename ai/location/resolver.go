package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/concierge/ai/internal/strutil"
	"github.com/hrygo/concierge/ai/textnorm"
)

const (
	defaultAutocompleteLimit = 10
	maxAutocompleteLimit     = 50
)

// Resolver maps text to location documents using the norm/alias/merged-from keys.
type Resolver struct {
	store   Store
	maxGram int
}

// NewResolver creates a resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, maxGram: textnorm.DefaultMaxGram}
}

// Candidates returns the ordered lookup keys for text plus extra externally
// supplied phrases. All keys are in norm form.
func (r *Resolver) Candidates(text string, extra ...string) []string {
	external := make([]string, 0, len(extra)*2)
	for _, e := range extra {
		n := textnorm.Normalize(e)
		if n == "" {
			continue
		}
		external = append(external, n, textnorm.Despace(n))
	}
	return textnorm.MergeCandidates(external, textnorm.Grams(textnorm.Normalize(text), r.maxGram))
}

// FindInText returns the first non-region document matching the longest
// candidate phrase of text. It returns (nil, nil) when nothing matches.
func (r *Resolver) FindInText(ctx context.Context, text string, extra ...string) (*Document, error) {
	for _, c := range r.Candidates(text, extra...) {
		docs, err := r.store.Find(ctx, Query{
			Fields:         []Field{FieldNorm, FieldAliases},
			Values:         []string{c},
			ExcludeRegions: true,
		})
		if err != nil {
			return nil, fmt.Errorf("find location by %q: %w", c, err)
		}
		if doc := firstConcrete(docs); doc != nil {
			slog.DebugContext(ctx, "location resolved from text",
				"text", strutil.Truncate(text, 50),
				"candidate", c,
				"norm", doc.Norm)
			return doc, nil
		}
	}
	return nil, nil
}

// FindByProvinceExact resolves a single province or city name. Tiers are tried
// in order: canonical norm, alias, then historical merged-from names.
func (r *Resolver) FindByProvinceExact(ctx context.Context, name string) (*Document, error) {
	n := textnorm.Normalize(name)
	if n == "" {
		return nil, nil
	}
	keys := []string{n}
	if stripped := textnorm.Despace(n); stripped != n {
		keys = append(keys, stripped)
	}

	tiers := []Query{
		{Fields: []Field{FieldNorm}, Values: []string{n}, ExcludeRegions: true},
		{Fields: []Field{FieldAliases}, Values: keys},
		{Fields: []Field{FieldMergedFrom}, Values: keys},
	}
	for _, q := range tiers {
		docs, err := r.store.Find(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("find province %q by %s: %w", name, q.Fields[0], err)
		}
		if len(docs) > 0 {
			doc := docs[0]
			return &doc, nil
		}
	}
	return nil, nil
}

// Autocomplete lists documents whose norm starts with prefix, falling back to
// aliases when no norm matches.
func (r *Resolver) Autocomplete(ctx context.Context, prefix string, limit int) ([]Document, error) {
	p := textnorm.Normalize(prefix)
	if p == "" {
		return []Document{}, nil
	}
	if limit <= 0 {
		limit = defaultAutocompleteLimit
	}
	limit = min(limit, maxAutocompleteLimit)

	docs, err := r.store.FindPrefix(ctx, FieldNorm, p, limit)
	if err != nil {
		return nil, fmt.Errorf("autocomplete %q on norm: %w", p, err)
	}
	if len(docs) > 0 {
		return docs, nil
	}
	docs, err = r.store.FindPrefix(ctx, FieldAliases, p, limit)
	if err != nil {
		return nil, fmt.Errorf("autocomplete %q on aliases: %w", p, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// firstConcrete returns the first non-region document.
// Stores are not required to honour ExcludeRegions.
func firstConcrete(docs []Document) *Document {
	for i := range docs {
		if !docs[i].IsRegion() {
			doc := docs[i]
			return &doc
		}
	}
	return nil
}
