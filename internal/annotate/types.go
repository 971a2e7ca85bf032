// Package annotate implements the correction-extraction and alignment engine
// at the heart of Redline.
//
// The engine turns model output — either an (original, corrected) text pair or
// a single string containing inline <correction> markup — into a canonical
// clean text plus an ordered, non-overlapping list of annotated spans. It also
// provides the render-time counterpart: re-locating those spans inside text
// that may have drifted from the indices it was given (duplicate substrings,
// stale offsets, partially trusted model output).
//
// Every function in this package is a pure, synchronous transformation over
// immutable input strings. There is no I/O, no shared mutable state, and no
// locking; concurrent calls for independent requests are safe by construction.
// Malformed content never produces an error — the engine degrades to a valid
// result (clean text with fewer or no annotations) instead.
package annotate

import "encoding/json"

// ErrorType labels the kind of mistake a [Correction] fixes. Labels are
// best-effort heuristics, not authoritative grammar judgements.
type ErrorType string

const (
	TypeSpelling       ErrorType = "spelling"
	TypeGrammar        ErrorType = "grammar"
	TypePunctuation    ErrorType = "punctuation"
	TypeCapitalization ErrorType = "capitalization"
	TypeWordChoice     ErrorType = "word-choice"
	TypeInsertion      ErrorType = "insertion"
	TypeDeletion       ErrorType = "deletion"
	TypeUnknown        ErrorType = "unknown"
)

// IsValid reports whether t is a recognised error type.
func (t ErrorType) IsValid() bool {
	switch t {
	case TypeSpelling, TypeGrammar, TypePunctuation, TypeCapitalization,
		TypeWordChoice, TypeInsertion, TypeDeletion, TypeUnknown:
		return true
	}
	return false
}

// Correction is a single annotated span. It is immutable once constructed.
//
// StartIndex and EndIndex form a half-open byte range [StartIndex, EndIndex)
// into a specific canonical text; which text that is depends on the producer:
// [ExtractSpans] indexes into the original text, [ParseMarkup] and
// [Reconcile] index into the clean text. EndIndex >= StartIndex always holds;
// for pure insertions StartIndex == EndIndex.
type Correction struct {
	// Original is the exact substring this correction replaces. Empty for a
	// pure insertion.
	Original string `json:"original"`

	// Corrected is the replacement text. Empty for a pure deletion.
	Corrected string `json:"corrected"`

	// Type is the heuristic classification label.
	Type ErrorType `json:"type"`

	// Explanation is an optional human-readable note, typically attached by
	// a later enrichment pass. Empty when absent.
	Explanation string `json:"explanation,omitempty"`

	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// ParseResult is the output of [ExtractSpans] and [ParseMarkup].
type ParseResult struct {
	// CleanText is the fully de-annotated text.
	CleanText string `json:"cleanText"`

	// OriginalText is the pre-annotation input. Kept distinct from CleanText
	// because markup-derived clean text and a model-declared "original" may
	// differ in whitespace.
	OriginalText string `json:"originalText"`

	// Corrections is sorted ascending by StartIndex and pairwise
	// non-overlapping in the canonical text it indexes. Always non-nil.
	Corrections []Correction `json:"corrections"`
}

// Segment is one piece of render output produced by [Align]: a slice of the
// input text, optionally annotated with the correction that applies to it.
// Concatenating the Text of all segments reproduces the aligned input exactly.
type Segment struct {
	// Text is the slice of the aligned input covered by this segment.
	Text string

	// Annotation is nil for literal segments.
	Annotation *Correction
}

// Annotated reports whether the segment carries a correction.
func (s Segment) Annotated() bool { return s.Annotation != nil }

// annotatedSegment is the wire shape of an annotated segment.
type annotatedSegment struct {
	Annotation Correction `json:"annotation"`
	Text       string     `json:"text"`
}

// MarshalJSON serialises a literal segment as a plain JSON string and an
// annotated segment as {"annotation": ..., "text": ...}.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.Annotation == nil {
		return json.Marshal(s.Text)
	}
	return json.Marshal(annotatedSegment{Annotation: *s.Annotation, Text: s.Text})
}

// UnmarshalJSON accepts both wire shapes produced by [Segment.MarshalJSON].
func (s *Segment) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Text = plain
		s.Annotation = nil
		return nil
	}
	var as annotatedSegment
	if err := json.Unmarshal(data, &as); err != nil {
		return err
	}
	s.Text = as.Text
	s.Annotation = &as.Annotation
	return nil
}
