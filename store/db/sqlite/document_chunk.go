package sqlite

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/concierge/store"
)

// UpsertDocumentChunk inserts a chunk, or replaces it when ID is set.
func (d *DB) UpsertDocumentChunk(ctx context.Context, chunk *store.DocumentChunk) (*store.DocumentChunk, error) {
	vector, err := encodeVector(chunk.Embedding)
	if err != nil {
		return nil, err
	}
	metadata := "{}"
	if len(chunk.Metadata) > 0 {
		data, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal document metadata")
		}
		metadata = string(data)
	}

	if chunk.ID == 0 {
		stmt := `INSERT INTO document_chunk (content, metadata, province, embedding)
			VALUES (?, ?, ?, ?)
			RETURNING id`
		if err := d.db.QueryRowContext(ctx, stmt, chunk.Content, metadata, chunk.Province, vector).Scan(&chunk.ID); err != nil {
			return nil, errors.Wrap(err, "failed to insert document chunk")
		}
		return chunk, nil
	}

	stmt := `INSERT INTO document_chunk (id, content, metadata, province, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			province = excluded.province,
			embedding = excluded.embedding`
	if _, err := d.db.ExecContext(ctx, stmt, chunk.ID, chunk.Content, metadata, chunk.Province, vector); err != nil {
		return nil, errors.Wrap(err, "failed to upsert document chunk")
	}
	return chunk, nil
}

// MatchDocuments ranks chunks by cosine similarity, optionally restricted to
// one province.
func (d *DB) MatchDocuments(ctx context.Context, opts *store.MatchDocumentsOptions) ([]*store.DocumentMatch, error) {
	query := `SELECT id, content, metadata, embedding FROM document_chunk`
	args := []any{}
	if opts.Province != "" {
		query += ` WHERE province = ?`
		args = append(args, opts.Province)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match documents")
	}
	defer rows.Close()

	matches := []*store.DocumentMatch{}
	for rows.Next() {
		var m store.DocumentMatch
		var metadata, vector string
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &vector); err != nil {
			return nil, errors.Wrap(err, "failed to scan document chunk")
		}
		embedding, err := decodeVector(vector)
		if err != nil {
			return nil, err
		}
		m.Similarity = cosineSimilarity(opts.Embedding, embedding)
		if m.Similarity <= opts.Threshold {
			continue
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal document metadata")
			}
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate document chunks")
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > opts.Count {
		matches = matches[:opts.Count]
	}
	return matches, nil
}
