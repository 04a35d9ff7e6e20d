package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/concierge/store"
)

// UpsertDocumentChunk inserts a chunk, or replaces it when ID is set.
func (d *DB) UpsertDocumentChunk(ctx context.Context, chunk *store.DocumentChunk) (*store.DocumentChunk, error) {
	metadata, err := encodeMetadata(chunk.Metadata)
	if err != nil {
		return nil, err
	}
	vector := pgvector.NewVector(chunk.Embedding)

	if chunk.ID == 0 {
		stmt := `
			INSERT INTO documents (content, metadata, province, embedding)
			VALUES (` + placeholders(4) + `)
			RETURNING id
		`
		if err := d.db.QueryRowContext(ctx, stmt, chunk.Content, metadata, chunk.Province, vector).Scan(&chunk.ID); err != nil {
			return nil, errors.Wrap(err, "failed to insert document chunk")
		}
		return chunk, nil
	}

	stmt := `
		INSERT INTO documents (id, content, metadata, province, embedding)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			province = EXCLUDED.province,
			embedding = EXCLUDED.embedding
	`
	if _, err := d.db.ExecContext(ctx, stmt, chunk.ID, chunk.Content, metadata, chunk.Province, vector); err != nil {
		return nil, errors.Wrap(err, "failed to upsert document chunk")
	}
	return chunk, nil
}

// MatchDocuments calls match_documents(query_embedding, match_threshold,
// match_count, filter_province). An empty province passes NULL.
func (d *DB) MatchDocuments(ctx context.Context, opts *store.MatchDocumentsOptions) ([]*store.DocumentMatch, error) {
	query := `SELECT id, content, metadata, similarity FROM match_documents(` + placeholders(4) + `)`

	province := sql.NullString{String: opts.Province, Valid: opts.Province != ""}
	rows, err := d.db.QueryContext(ctx, query,
		pgvector.NewVector(opts.Embedding),
		float64(opts.Threshold),
		opts.Count,
		province,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match documents")
	}
	defer rows.Close()

	list := []*store.DocumentMatch{}
	for rows.Next() {
		var m store.DocumentMatch
		var metadata []byte
		var similarity float64
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &similarity); err != nil {
			return nil, errors.Wrap(err, "failed to scan document match")
		}
		if m.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		m.Similarity = float32(similarity)
		list = append(list, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate document matches")
	}
	return list, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document metadata")
	}
	return data, nil
}

func decodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal document metadata")
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
