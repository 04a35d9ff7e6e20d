// Package location resolves free-text mentions of Vietnamese provinces and places
// to documents of the location collection.
package location

import (
	"context"
	"slices"
)

// TypeRegion marks a grouping document (e.g. "Miền Trung") that is never a
// concrete resolution target for text matching.
const TypeRegion = "region"

// Document is a read-only entry of the location collection.
type Document struct {
	ID      string   `json:"id" bson:"-"`
	Name    string   `json:"name" bson:"name"`
	Norm    string   `json:"norm" bson:"norm"`
	Aliases []string `json:"aliases,omitempty" bson:"aliases,omitempty"`
	// Both spellings exist in the collection depending on which sync job wrote the document.
	MergedFrom       []string `json:"merged_from,omitempty" bson:"mergedFrom,omitempty"`
	MergedFromLegacy []string `json:"-" bson:"merged_from,omitempty"`
	Type             string   `json:"type,omitempty" bson:"type,omitempty"`

	// Opaque payloads consumed by the response composer.
	Places any `json:"places,omitempty" bson:"places,omitempty"`
	Dishes any `json:"dishes,omitempty" bson:"dishes,omitempty"`
	Tips   any `json:"tips,omitempty" bson:"tips,omitempty"`
}

// IsRegion reports whether d is a region grouping.
func (d *Document) IsRegion() bool {
	return d.Type == TypeRegion
}

// MergedKeys returns the union of both merged-from spellings.
func (d *Document) MergedKeys() []string {
	if len(d.MergedFromLegacy) == 0 {
		return d.MergedFrom
	}
	keys := slices.Clone(d.MergedFrom)
	for _, k := range d.MergedFromLegacy {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Field names a searchable key field of a location document.
type Field string

const (
	FieldNorm       Field = "norm"
	FieldAliases    Field = "aliases"
	FieldMergedFrom Field = "merged_from"
)

// Query selects documents whose value in any of Fields equals (or, for array
// fields, contains) any of Values.
type Query struct {
	Fields         []Field
	Values         []string
	ExcludeRegions bool
}

// Store is the read-only view of the location collection.
// "No document" is an empty result; errors are reserved for infrastructure failures.
type Store interface {
	Find(ctx context.Context, q Query) ([]Document, error)
	// FindPrefix returns documents whose field value starts with prefix.
	FindPrefix(ctx context.Context, field Field, prefix string, limit int) ([]Document, error)
}
