package location

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MemoryStore is an in-process Store backed by a slice of documents.
// It serves fixtures in dev mode and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates a store over docs, kept in the given order.
func NewMemoryStore(docs ...Document) *MemoryStore {
	return &MemoryStore{docs: slices.Clone(docs)}
}

// LoadMemoryStore decodes a JSON array of documents.
func LoadMemoryStore(r io.Reader) (*MemoryStore, error) {
	var raw []struct {
		Document
		MergedFromCamel []string `json:"mergedFrom"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode location fixtures")
	}
	docs := make([]Document, 0, len(raw))
	for _, item := range raw {
		d := item.Document
		if len(item.MergedFromCamel) > 0 {
			d.MergedFromLegacy = d.MergedFrom
			d.MergedFrom = item.MergedFromCamel
		}
		docs = append(docs, d)
	}
	return NewMemoryStore(docs...), nil
}

// Add appends documents.
func (s *MemoryStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, d := range s.docs {
		if q.ExcludeRegions && d.IsRegion() {
			continue
		}
		if matchesAny(&d, q.Fields, q.Values) {
			out = append(out, d)
		}
	}
	sortByNorm(out)
	return out, nil
}

func (s *MemoryStore) FindPrefix(_ context.Context, field Field, prefix string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, d := range s.docs {
		for _, v := range fieldValues(&d, field) {
			if strings.HasPrefix(v, prefix) {
				out = append(out, d)
				break
			}
		}
	}
	sortByNorm(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAny(d *Document, fields []Field, values []string) bool {
	for _, f := range fields {
		for _, v := range fieldValues(d, f) {
			if slices.Contains(values, v) {
				return true
			}
		}
	}
	return false
}

func fieldValues(d *Document, f Field) []string {
	switch f {
	case FieldNorm:
		return []string{d.Norm}
	case FieldAliases:
		return d.Aliases
	case FieldMergedFrom:
		return d.MergedKeys()
	default:
		return nil
	}
}

func sortByNorm(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Norm < docs[j].Norm })
}

var _ Store = (*MemoryStore)(nil)
