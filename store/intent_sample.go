package store

import (
	"github.com/pkg/errors"
)

// IntentSample is a labeled example utterance with its embedding.
// Every intent code needs at least one sample for vector classification.
type IntentSample struct {
	ID          int64
	IntentCode  string
	SampleQuery string
	Model       string
	Embedding   []float32
	CreatedTs   int64
}

// Validate validates the IntentSample.
func (s *IntentSample) Validate() error {
	if s.IntentCode == "" {
		return errors.New("intent code cannot be empty")
	}
	if s.SampleQuery == "" {
		return errors.New("sample query cannot be empty")
	}
	if len(s.Embedding) == 0 {
		return errors.New("embedding cannot be empty")
	}
	return nil
}

// FindIntentSample is the find condition for intent samples.
type FindIntentSample struct {
	IntentCode *string
	Model      *string
}

// IntentMatch is one row returned by intent similarity search.
type IntentMatch struct {
	IntentCode  string
	SampleQuery string
	Similarity  float32
}

// MatchIntentOptions mirrors the match_intent RPC arguments.
type MatchIntentOptions struct {
	Embedding []float32
	Threshold float32
	Count     int
}

// Validate validates the options and fills the default count.
func (o *MatchIntentOptions) Validate() error {
	if o == nil {
		return errors.New("match options are required")
	}
	if len(o.Embedding) == 0 {
		return errors.New("query embedding cannot be empty")
	}
	if o.Threshold < -1 || o.Threshold > 1 {
		return errors.Errorf("threshold out of range: %v", o.Threshold)
	}
	if o.Count < 0 {
		return errors.Errorf("count cannot be negative: %d", o.Count)
	}
	if o.Count == 0 {
		o.Count = 1
	}
	if o.Count > 100 {
		o.Count = 100
	}
	return nil
}
