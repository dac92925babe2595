package classify

import (
	"time"
)

// A LabeledDocument is one training example: raw text and its label id.
type LabeledDocument struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

// A Sentence represents a segmented portion of text.
type Sentence struct {
	Text  string // The sentence's text.
	Start int    // Start position in original text
	End   int    // End position in original text
}

// String returns the text content of the sentence
func (s Sentence) String() string {
	return s.Text
}

// DocumentMetadata contains metadata about processed documents
type DocumentMetadata struct {
	Language       Language
	ProcessedAt    time.Time
	ProcessingTime time.Duration
	CharCount      int
	TokenCount     int
	SentenceCount  int
}

// ConfidenceLevel represents different confidence thresholds
type ConfidenceLevel float64

const (
	LowConfidence    ConfidenceLevel = 0.5
	MediumConfidence ConfidenceLevel = 0.7
	HighConfidence   ConfidenceLevel = 0.9
)

// Grade buckets a probability into "high", "medium", "low" or "uncertain".
func Grade(p float64) string {
	switch {
	case p >= float64(HighConfidence):
		return "high"
	case p >= float64(MediumConfidence):
		return "medium"
	case p >= float64(LowConfidence):
		return "low"
	default:
		return "uncertain"
	}
}
