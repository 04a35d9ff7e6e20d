package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/concierge/store"
)

// UpsertIntentSample inserts or updates a labeled sample utterance.
func (d *DB) UpsertIntentSample(ctx context.Context, sample *store.IntentSample) (*store.IntentSample, error) {
	vector, err := encodeVector(sample.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO intent_sample (intent_code, sample_query, model, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (intent_code, sample_query) DO UPDATE SET
			model = excluded.model,
			embedding = excluded.embedding
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		sample.IntentCode,
		sample.SampleQuery,
		sample.Model,
		vector,
	).Scan(&sample.ID, &sample.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert intent sample")
	}
	return sample, nil
}

// ListIntentSamples lists intent samples.
func (d *DB) ListIntentSamples(ctx context.Context, find *store.FindIntentSample) ([]*store.IntentSample, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find != nil && find.IntentCode != nil {
		where, args = append(where, "intent_code = ?"), append(args, *find.IntentCode)
	}
	if find != nil && find.Model != nil {
		where, args = append(where, "model = ?"), append(args, *find.Model)
	}

	query := `SELECT id, intent_code, sample_query, model, embedding, created_ts
		FROM intent_sample
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY intent_code, id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list intent samples")
	}
	defer rows.Close()

	list := []*store.IntentSample{}
	for rows.Next() {
		var sample store.IntentSample
		var vector string
		if err := rows.Scan(&sample.ID, &sample.IntentCode, &sample.SampleQuery, &sample.Model, &vector, &sample.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan intent sample")
		}
		if sample.Embedding, err = decodeVector(vector); err != nil {
			return nil, err
		}
		list = append(list, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate intent samples")
	}
	return list, nil
}

// MatchIntent ranks every sample by cosine similarity. Rows must score
// strictly above the threshold, matching the Postgres function.
func (d *DB) MatchIntent(ctx context.Context, opts *store.MatchIntentOptions) ([]*store.IntentMatch, error) {
	samples, err := d.ListIntentSamples(ctx, nil)
	if err != nil {
		return nil, err
	}

	matches := []*store.IntentMatch{}
	for _, s := range samples {
		score := cosineSimilarity(opts.Embedding, s.Embedding)
		if score <= opts.Threshold {
			continue
		}
		matches = append(matches, &store.IntentMatch{
			IntentCode:  s.IntentCode,
			SampleQuery: s.SampleQuery,
			Similarity:  score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].IntentCode < matches[j].IntentCode
	})
	if len(matches) > opts.Count {
		matches = matches[:opts.Count]
	}
	return matches, nil
}
