package store

import (
	"github.com/pkg/errors"
)

// DocumentChunk is a piece of travel knowledge indexed for similarity search.
type DocumentChunk struct {
	ID        int64
	Content   string
	Metadata  map[string]any
	Province  string // norm key of the province the chunk belongs to, may be empty
	Embedding []float32
}

// Validate validates the DocumentChunk.
func (c *DocumentChunk) Validate() error {
	if c.Content == "" {
		return errors.New("content cannot be empty")
	}
	if len(c.Embedding) == 0 {
		return errors.New("embedding cannot be empty")
	}
	return nil
}

// DocumentMatch is one row returned by document similarity search.
type DocumentMatch struct {
	ID         int64          `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float32        `json:"similarity"`
}

// MatchDocumentsOptions mirrors the match_documents RPC arguments.
type MatchDocumentsOptions struct {
	Embedding []float32
	Threshold float32
	Count     int
	Province  string // empty means no province filter
}

// Validate validates the options and fills the default count.
func (o *MatchDocumentsOptions) Validate() error {
	if o == nil {
		return errors.New("match options are required")
	}
	if len(o.Embedding) == 0 {
		return errors.New("query embedding cannot be empty")
	}
	if o.Count < 0 {
		return errors.Errorf("count cannot be negative: %d", o.Count)
	}
	if o.Count == 0 {
		o.Count = 5
	}
	if o.Count > 100 {
		o.Count = 100
	}
	return nil
}
