package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hrygo/concierge/store"
)

// SampleLister lists stored intent samples.
type SampleLister interface {
	ListIntentSamples(ctx context.Context, find *store.FindIntentSample) ([]*store.IntentSample, error)
}

// SampleCoverage describes the labeled samples available to the vector
// classifier for one embedding model.
type SampleCoverage struct {
	Model string
	// Counts holds the samples embedded with Model per intent.
	Counts map[Intent]int
	// Missing lists intents, in AllIntents order, without a sample for Model.
	Missing []Intent
	// OtherModels counts samples embedded with any other model. Their
	// vectors are not comparable with query embeddings.
	OtherModels map[string]int
	// Unknown counts samples whose intent code is outside the intent set.
	Unknown int
}

// Complete reports whether every intent has a sample for Model and no sample
// comes from another model.
func (c *SampleCoverage) Complete() bool {
	return len(c.Missing) == 0 && len(c.OtherModels) == 0
}

// AuditSamples checks the stored samples against the query embedding model.
func AuditSamples(ctx context.Context, lister SampleLister, model string) (*SampleCoverage, error) {
	matching, err := lister.ListIntentSamples(ctx, &store.FindIntentSample{Model: &model})
	if err != nil {
		return nil, fmt.Errorf("list samples for model %s: %w", model, err)
	}
	all, err := lister.ListIntentSamples(ctx, &store.FindIntentSample{})
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}

	cov := &SampleCoverage{
		Model:       model,
		Counts:      make(map[Intent]int, len(AllIntents)),
		OtherModels: make(map[string]int),
	}
	for _, s := range matching {
		intent, ok := ParseIntent(s.IntentCode)
		if !ok {
			cov.Unknown++
			continue
		}
		cov.Counts[intent]++
	}
	for _, s := range all {
		if s.Model != model {
			cov.OtherModels[s.Model]++
		}
	}
	for _, intent := range AllIntents {
		if cov.Counts[intent] == 0 {
			cov.Missing = append(cov.Missing, intent)
		}
	}
	return cov, nil
}

// Log warns about every gap in the coverage.
func (c *SampleCoverage) Log(ctx context.Context) {
	for _, intent := range c.Missing {
		slog.WarnContext(ctx, "intent has no labeled samples, vector signal can never choose it",
			"intent", intent, "model", c.Model)
	}
	models := make([]string, 0, len(c.OtherModels))
	for m := range c.OtherModels {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		slog.WarnContext(ctx, "intent samples embedded with a different model, reseed them",
			"sample_model", m, "query_model", c.Model, "count", c.OtherModels[m])
	}
	if c.Unknown > 0 {
		slog.WarnContext(ctx, "intent samples with unknown intent codes", "count", c.Unknown)
	}
	if c.Complete() {
		slog.InfoContext(ctx, "intent samples cover every intent", "model", c.Model)
	}
}
