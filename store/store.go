package store

import (
	"context"
)

// Driver is the persistence backend for intent samples and knowledge chunks.
type Driver interface {
	// Migrate creates the tables and functions the driver needs.
	Migrate(ctx context.Context) error
	Close() error

	UpsertIntentSample(ctx context.Context, sample *IntentSample) (*IntentSample, error)
	ListIntentSamples(ctx context.Context, find *FindIntentSample) ([]*IntentSample, error)
	MatchIntent(ctx context.Context, opts *MatchIntentOptions) ([]*IntentMatch, error)

	UpsertDocumentChunk(ctx context.Context, chunk *DocumentChunk) (*DocumentChunk, error)
	MatchDocuments(ctx context.Context, opts *MatchDocumentsOptions) ([]*DocumentMatch, error)
}

// Store provides database access to intent samples and document chunks.
type Store struct {
	driver Driver
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) UpsertIntentSample(ctx context.Context, sample *IntentSample) (*IntentSample, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	return s.driver.UpsertIntentSample(ctx, sample)
}

func (s *Store) ListIntentSamples(ctx context.Context, find *FindIntentSample) ([]*IntentSample, error) {
	return s.driver.ListIntentSamples(ctx, find)
}

// MatchIntent returns the samples most similar to opts.Embedding, best first.
func (s *Store) MatchIntent(ctx context.Context, opts *MatchIntentOptions) ([]*IntentMatch, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.MatchIntent(ctx, opts)
}

func (s *Store) UpsertDocumentChunk(ctx context.Context, chunk *DocumentChunk) (*DocumentChunk, error) {
	if err := chunk.Validate(); err != nil {
		return nil, err
	}
	return s.driver.UpsertDocumentChunk(ctx, chunk)
}

// MatchDocuments returns the chunks most similar to opts.Embedding, best first.
func (s *Store) MatchDocuments(ctx context.Context, opts *MatchDocumentsOptions) ([]*DocumentMatch, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.MatchDocuments(ctx, opts)
}
