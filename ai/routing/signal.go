package routing

// SignalStatus tells how a signal value was obtained.
type SignalStatus string

const (
	// StatusOK means the collaborator answered and the answer was usable.
	StatusOK SignalStatus = "ok"
	// StatusNoMatch means the search ran but nothing cleared the threshold.
	StatusNoMatch SignalStatus = "no_match"
	// StatusDegraded means a failure was absorbed and the default was used.
	StatusDegraded SignalStatus = "degraded"
)

// Degrade reasons.
const (
	ReasonNoBackend       = "no_backend"
	ReasonRateLimited     = "rate_limited"
	ReasonTimeout         = "timeout"
	ReasonLLMError        = "llm_error"
	ReasonParseError      = "parse_error"
	ReasonUnknownCategory = "unknown_category"
	ReasonEmbedError      = "embed_error"
	ReasonSearchError     = "search_error"
	ReasonUnknownIntent   = "unknown_intent"
)

// LLMSignal is the extraction result: an optional city and a category.
// City is empty when no location was mentioned.
type LLMSignal struct {
	City     string       `json:"city,omitempty"`
	Category Category     `json:"category"`
	Status   SignalStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
}

// HasCity reports whether a city was extracted.
func (s LLMSignal) HasCity() bool {
	return s.City != ""
}

// defaultLLMSignal is returned on any failure.
func defaultLLMSignal(reason string) LLMSignal {
	return LLMSignal{Category: CategoryOther, Status: StatusDegraded, Reason: reason}
}

// VectorSignal is the nearest-sample classification.
type VectorSignal struct {
	Intent      Intent       `json:"intent"`
	Similarity  float32      `json:"similarity,omitempty"`
	SampleQuery string       `json:"sample_query,omitempty"`
	Status      SignalStatus `json:"status"`
	Reason      string       `json:"reason,omitempty"`
}

func defaultVectorSignal(status SignalStatus, reason string) VectorSignal {
	return VectorSignal{Intent: IntentAskDetails, Status: status, Reason: reason}
}
