package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/concierge/store"
)

// UpsertIntentSample inserts or updates a labeled sample utterance.
func (d *DB) UpsertIntentSample(ctx context.Context, sample *store.IntentSample) (*store.IntentSample, error) {
	stmt := `
		INSERT INTO intent_samples (intent_code, sample_query, model, embedding)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (intent_code, sample_query)
		DO UPDATE SET
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding
		RETURNING id, created_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		sample.IntentCode,
		sample.SampleQuery,
		sample.Model,
		pgvector.NewVector(sample.Embedding),
	).Scan(&sample.ID, &sample.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert intent sample")
	}
	return sample, nil
}

// ListIntentSamples lists intent samples.
func (d *DB) ListIntentSamples(ctx context.Context, find *store.FindIntentSample) ([]*store.IntentSample, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find != nil && find.IntentCode != nil {
		where, args = append(where, "intent_code = "+placeholder(len(args)+1)), append(args, *find.IntentCode)
	}
	if find != nil && find.Model != nil {
		where, args = append(where, "model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}

	query := `
		SELECT id, intent_code, sample_query, model, embedding, created_ts
		FROM intent_samples
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY intent_code, id
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list intent samples")
	}
	defer rows.Close()

	list := []*store.IntentSample{}
	for rows.Next() {
		var sample store.IntentSample
		var vector pgvector.Vector
		if err := rows.Scan(&sample.ID, &sample.IntentCode, &sample.SampleQuery, &sample.Model, &vector, &sample.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan intent sample")
		}
		sample.Embedding = vector.Slice()
		list = append(list, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate intent samples")
	}
	return list, nil
}

// MatchIntent calls match_intent(query_embedding, match_threshold, match_count).
func (d *DB) MatchIntent(ctx context.Context, opts *store.MatchIntentOptions) ([]*store.IntentMatch, error) {
	query := `SELECT intent_code, sample_query, similarity FROM match_intent(` + placeholders(3) + `)`

	rows, err := d.db.QueryContext(ctx, query,
		pgvector.NewVector(opts.Embedding),
		float64(opts.Threshold),
		opts.Count,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match intent")
	}
	defer rows.Close()

	list := []*store.IntentMatch{}
	for rows.Next() {
		var m store.IntentMatch
		var similarity float64
		if err := rows.Scan(&m.IntentCode, &m.SampleQuery, &similarity); err != nil {
			return nil, errors.Wrap(err, "failed to scan intent match")
		}
		m.Similarity = float32(similarity)
		list = append(list, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate intent matches")
	}
	return list, nil
}
